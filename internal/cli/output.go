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

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeremyhahn/go-sss/pkg/stream"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

type createReport struct {
	OperationID string   `json:"operation_id"`
	Input       string   `json:"input"`
	OutDir      string   `json:"out_dir"`
	Shares      []string `json:"shares"`
	PrimeFile   string   `json:"prime_file"`
	Manifest    string   `json:"manifest,omitempty"`
	Threshold   int      `json:"threshold"`
	SecretBytes int64    `json:"secret_bytes"`
	PrimeBits   int      `json:"prime_bits"`
	Digest      string   `json:"digest"`
	Shuffled    bool     `json:"shuffled"`
	Confirmed   bool     `json:"confirmed"`
}

type reconstructReport struct {
	OperationID string `json:"operation_id"`
	Output      string `json:"output"`
	Shares      []int  `json:"shares"`
	SecretBytes int64  `json:"secret_bytes"`
	Digest      string `json:"digest"`
	Verified    bool   `json:"verified"`
}

// PrintCreate prints the outcome of create
func (p *Printer) PrintCreate(r *createReport) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(r)
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Shares created and output to directory '%s'\n", r.OutDir)
		fmt.Fprintf(p.writer, "  Shares:    %d (any %d reconstruct)\n", len(r.Shares), r.Threshold)
		for _, s := range r.Shares {
			fmt.Fprintf(p.writer, "    %s\n", s)
		}
		fmt.Fprintf(p.writer, "  Prime:     %s (%d bits)\n", r.PrimeFile, r.PrimeBits)
		if r.Manifest != "" {
			fmt.Fprintf(p.writer, "  Manifest:  %s\n", r.Manifest)
		}
		fmt.Fprintf(p.writer, "  Secret:    %d bytes\n", r.SecretBytes)
		fmt.Fprintf(p.writer, "  Digest:    %s\n", r.Digest)
		fmt.Fprintf(p.writer, "  Shuffled:  %t\n", r.Shuffled)
		if r.Confirmed {
			fmt.Fprintln(p.writer, "Test reconstruction PASSED")
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintReconstruct prints the outcome of reconstruct
func (p *Printer) PrintReconstruct(r *reconstructReport) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(r)
	case OutputFormatText:
		shares := make([]string, len(r.Shares))
		for i, x := range r.Shares {
			shares[i] = fmt.Sprint(x)
		}
		fmt.Fprintf(p.writer, "Secret reconstructed at %s\n", r.Output)
		fmt.Fprintf(p.writer, "  Shares:    %s\n", strings.Join(shares, ", "))
		fmt.Fprintf(p.writer, "  Secret:    %d bytes\n", r.SecretBytes)
		if r.Verified {
			fmt.Fprintf(p.writer, "  Verified:  %s\n", r.Digest)
		} else {
			fmt.Fprintln(p.writer, "  Verified:  no (digest disabled)")
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintCheck prints self-check results
func (p *Printer) PrintCheck(r *checkReport) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(r)
	case OutputFormatText:
		for _, c := range r.Checks {
			detail := c.Message
			if c.Error != "" {
				detail = c.Error
			}
			fmt.Fprintf(p.writer, "  %-10s %-10s %8s  %s\n",
				c.Name, c.Status, c.Latency.Round(time.Millisecond), detail)
		}
		fmt.Fprintf(p.writer, "Self-check %s\n", r.Status)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
			"class":  stream.ErrorClass(err),
		})
	default:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	}
}

// printJSON prints data as JSON
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
