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

package secretsharing_test

import (
	"crypto/rand"
	"fmt"
	"log"
	"math/big"

	"github.com/cronokirby/saferith"

	"github.com/jeremyhahn/go-sss/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-sss/pkg/field"
)

// A 2-of-3 split of a short secret held in memory, recovered from the first
// and last shares.
func ExampleShamir() {
	prime, err := field.GeneratePrime(rand.Reader, field.DefaultPrimeBits)
	if err != nil {
		log.Fatal(err)
	}
	f, err := field.New(prime)
	if err != nil {
		log.Fatal(err)
	}

	shamir, err := secretsharing.NewShamir(f, &secretsharing.ShareConfig{Threshold: 2, TotalShares: 3}, rand.Reader)
	if err != nil {
		log.Fatal(err)
	}
	shares, err := shamir.Split([]byte("vault unseal"))
	if err != nil {
		log.Fatal(err)
	}

	secret, err := shamir.Combine([]secretsharing.Share{shares[0], shares[2]})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%d shares, recovered %q\n", len(shares), secret)
	// Output: 3 shares, recovered "vault unseal"
}

// Streaming callers split one unit at a time and interpolate with a
// Reconstructor built once for the participating x-coordinates.
func ExampleReconstructor() {
	f, err := field.New(big.NewInt(257))
	if err != nil {
		log.Fatal(err)
	}
	splitter, err := secretsharing.NewSplitter(f, &secretsharing.ShareConfig{Threshold: 3, TotalShares: 5}, rand.Reader)
	if err != nil {
		log.Fatal(err)
	}
	rec, err := secretsharing.NewReconstructor(f, []int{2, 4, 5})
	if err != nil {
		log.Fatal(err)
	}

	var out []byte
	for _, b := range []byte("k=3") {
		ys, err := splitter.SplitByte(b)
		if err != nil {
			log.Fatal(err)
		}
		unit, err := rec.ReconstructByte([]*saferith.Nat{ys[1], ys[3], ys[4]})
		if err != nil {
			log.Fatal(err)
		}
		out = append(out, unit)
	}
	fmt.Println(string(out))
	// Output: k=3
}
