package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/FACorreiaa/statement-ledger/internal/domain/resolution"
)

// runVendors answers operator lookups against the vendor search index.
func runVendors(deps *Dependencies, args []string) error {
	fs := flag.NewFlagSet("vendors", flag.ExitOnError)
	search := fs.String("search", "", "fuzzy query over vendor names and patterns")
	limit := fs.Int("limit", 10, "maximum number of results")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *search == "" {
		return fmt.Errorf("-search is required")
	}

	hits, err := deps.VendorIndex.Search(*search, *limit)
	if err != nil {
		return err
	}
	fmt.Print(formatVendorHits(hits))
	return nil
}

// formatVendorHits renders search results one per line, best first.
func formatVendorHits(hits []resolution.VendorHit) string {
	if len(hits) == 0 {
		return "no vendors matched\n"
	}
	var b strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&b, "%s  %-30s  %-6s  %.2f\n",
			h.VendorID, h.CanonicalName, h.GLAccountCode, h.Score)
	}
	return b.String()
}
