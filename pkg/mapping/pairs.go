package mapping

import (
	"fmt"
	"strings"

	"github.com/appenmapper/appenmapper/pkg/errors"
)

// DefaultKeyColumn is the identifier column both datasets must carry.
const DefaultKeyColumn = "Customer Number/ID"

// Pair maps one master column onto one target column.
type Pair struct {
	Source string `yaml:"source" json:"source"`
	Target string `yaml:"target" json:"target"`
}

// String returns "Source→Target".
func (p Pair) String() string {
	return p.Source + "→" + p.Target
}

// DefaultPairs returns the fixed master→target column table. Names differ
// where the target file spells a column differently.
func DefaultPairs() []Pair {
	return []Pair{
		{Source: "Company", Target: "Company"},
		{Source: "Address", Target: "Address"},
		{Source: "City", Target: "City"},
		{Source: "State", Target: "State"},
		{Source: "ZipCode", Target: "ZipCode"},
		{Source: "Country", Target: "Country"},
		{Source: "PhoneResearched", Target: "PhoneResearched"},
		{Source: "DUNSNumber", Target: "Duns"},
		{Source: "LineOfBusiness", Target: "LineOfBusiness"},
		{Source: "SIC", Target: "SIC"},
		{Source: "NAICS", Target: "NAICS"},
		{Source: "Parent_Name", Target: "ParentName"},
		{Source: "WebAddress", Target: "Webaddress"},
		{Source: "ContactPhone", Target: "ContactPhone"},
	}
}

// ValidatePairs checks that every pair names both columns and that no
// source or target column appears twice.
func ValidatePairs(pairs []Pair) error {
	if len(pairs) == 0 {
		return errors.InvalidMapping("column mapping table is empty")
	}

	sources := make(map[string]bool, len(pairs))
	targets := make(map[string]bool, len(pairs))
	for i, p := range pairs {
		src := strings.TrimSpace(p.Source)
		tgt := strings.TrimSpace(p.Target)
		if src == "" || tgt == "" {
			return errors.InvalidMapping(fmt.Sprintf("pair %d has an empty column name", i)).
				WithContext("pair", p.String())
		}
		if sources[src] {
			return errors.InvalidMapping("source column mapped twice").WithContext("column", src)
		}
		if targets[tgt] {
			return errors.InvalidMapping("target column filled by more than one source").WithContext("column", tgt)
		}
		sources[src] = true
		targets[tgt] = true
	}
	return nil
}
