package pipeline

import (
	"context"
	"fmt"

	"skucluster/pkg/core"
	"skucluster/pkg/dataprep"
	"skucluster/pkg/logging"
)

// SKU master data columns.
const (
	ColID               = "ID"
	ColUnitPrice        = "Unitprice"
	ColExpireDate       = "Expire date"
	ColOutboundNumber   = "Outbound number"
	ColTotalOutbound    = "Total outbound"
	ColPalGrossWeight   = "Pal grossweight"
	ColPalHeight        = "Pal height"
	ColUnitsPerPal      = "Units per pal"
	ColTradability      = "Tradability"
	ColInitStatus       = "Init status"
	ColOutboundFraction = "Outbound Fraction"
)

// Schema lists the columns the preparation step expects and what it does
// with them.
type Schema struct {
	// Dropped are identifier or categorical columns removed when present.
	Dropped []string
	// ZeroMissing are numeric columns where a literal zero means unrecorded.
	ZeroMissing []string
	// Derived replaces two correlated raw columns with their ratio. Optional.
	Derived *dataprep.Ratio
}

// SKUSchema is the layout of the SKU master data export.
var SKUSchema = Schema{
	Dropped: []string{ColID, ColTradability, ColInitStatus},
	ZeroMissing: []string{
		ColUnitPrice, ColExpireDate, ColOutboundNumber, ColTotalOutbound,
		ColPalGrossWeight, ColPalHeight, ColUnitsPerPal,
	},
	Derived: &dataprep.Ratio{
		Name:        ColOutboundFraction,
		Numerator:   ColTotalOutbound,
		Denominator: ColOutboundNumber,
	},
}

// Prepare applies s to a copy of raw: drops the identifier columns, turns
// zeros into missing cells and derives the ratio column. Every ZeroMissing
// column must be present.
func (s Schema) Prepare(ctx context.Context, raw *core.Dataset) (*core.Dataset, error) {
	logger := logging.FromContext(ctx)
	for _, name := range s.ZeroMissing {
		if raw.Index(name) < 0 {
			return nil, fmt.Errorf("%w: prepare: missing column %q", core.ErrDataShape, name)
		}
	}

	ds := raw.DropColumns(s.Dropped...)
	replaced, err := dataprep.ZeroAsMissing(ds, s.ZeroMissing...)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	logger.Infow("zero values marked missing", "cells", replaced)

	if s.Derived != nil {
		var corr float64
		ds, corr, err = dataprep.DeriveRatio(ds, *s.Derived)
		if err != nil {
			return nil, fmt.Errorf("prepare: %w", err)
		}
		logger.Infow("derived ratio feature",
			"feature", s.Derived.Name,
			"numerator", s.Derived.Numerator,
			"denominator", s.Derived.Denominator,
			"pearson", corr,
		)
	}
	if len(ds.Names) == 0 {
		return nil, fmt.Errorf("%w: prepare: no columns left", core.ErrDataShape)
	}
	return ds, nil
}
