// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-sss.
//
// go-sss is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package secretsharing implements Shamir's Secret Sharing Scheme over a
// prime field.
//
// Shamir's Secret Sharing divides a secret into N shares, where any K shares
// (the threshold) reconstruct the original secret, but K-1 or fewer shares
// reveal no information about it.
//
// # Mathematical Foundation
//
// Every secret unit (one byte) becomes the constant term a0 of a fresh
// polynomial of degree K-1:
//
//	f(x) = a0 + a1*x + a2*x^2 + ... + a(K-1)*x^(K-1)  (mod P)
//
// The coefficients a1..a(K-1) are drawn uniformly from [0, P) using the
// caller supplied entropy source, and share i receives f(i) for i = 1..N.
// The secret unit is recovered by Lagrange interpolation at x = 0:
//
//	a0 = sum_i y_i * prod_{j != i} (0 - x_j) / (x_i - x_j)  (mod P)
//
// P is a session prime generated by package field; it must be larger than
// 255 and larger than N. The x-coordinate 0 is never issued because f(0) is
// the secret itself.
//
// # Building Blocks
//
// Splitter evaluates one polynomial per unit and is what the streaming
// coordinator drives chunk by chunk. Reconstructor precomputes the Lagrange
// basis for a fixed set of x-coordinates, so reconstructing each unit costs K
// multiplications. Shamir wraps both for secrets that fit in memory.
//
// # Usage Example
//
//	prime, _ := field.GeneratePrime(rand.Reader, field.DefaultPrimeBits)
//	f, _ := field.New(prime)
//
//	shamir, err := secretsharing.NewShamir(f, &secretsharing.ShareConfig{
//	    Threshold:   3,
//	    TotalShares: 5,
//	}, rand.Reader)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	shares, _ := shamir.Split([]byte("my secret data"))
//	secret, _ := shamir.Combine([]secretsharing.Share{shares[0], shares[2], shares[4]})
//
// # Constraints
//
//   - Threshold K must satisfy: 2 <= K <= N <= 255
//   - Share x-coordinates are 1..N; 0 is reserved
//   - Every supplied x-coordinate must be distinct
//
// # References
//
// - Shamir, Adi (1979). "How to Share a Secret"
package secretsharing
