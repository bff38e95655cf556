package registry

import (
	"github.com/ArionMiles/receiptor/pkg/importers/caviar"
	"github.com/ArionMiles/receiptor/pkg/importers/doordash"
	"github.com/ArionMiles/receiptor/pkg/importers/grubhub"
	"github.com/ArionMiles/receiptor/pkg/importers/instacart"
	"github.com/ArionMiles/receiptor/pkg/importers/ubereats"
)

// Default returns the active vendor set. The dummy extractor is deliberately absent.
func Default() *Registry {
	r, err := New(
		caviar.New(),
		doordash.New(),
		grubhub.New(),
		instacart.New(),
		ubereats.New(),
	)
	if err != nil {
		// Names are constants; a duplicate is a programming error.
		panic(err)
	}
	return r
}
