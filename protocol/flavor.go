package protocol

import (
	"fmt"
)

// Flavor is the index of a coffee flavor on the wire.
type Flavor uint8

const (
	Kazaar Flavor = iota
	Dharkan
	Roma
	Livanto
	Volluto
	Cosi
	Cappricio
	Appregio
	Caramelito
	Vanilio
	Ciocattino

	// NumFlavors is the count of defined flavors. Any index at or above it
	// fits in the 5 bit field but means nothing.
	NumFlavors = int(Ciocattino) + 1
)

var flavorNames = [NumFlavors]string{
	Kazaar:     "Kazaar",
	Dharkan:    "Dharkan",
	Roma:       "Roma",
	Livanto:    "Livanto",
	Volluto:    "Volluto",
	Cosi:       "Cosi",
	Cappricio:  "Cappricio",
	Appregio:   "Appregio",
	Caramelito: "Caramelito",
	Vanilio:    "Vanilio",
	Ciocattino: "Ciocattino",
}

var flavorsByName = func() map[string]Flavor {
	m := make(map[string]Flavor, NumFlavors)
	for i, name := range flavorNames {
		m[name] = Flavor(i)
	}
	return m
}()

// Valid reports whether f is one of the defined flavors.
func (f Flavor) Valid() bool {
	return int(f) < NumFlavors
}

func (f Flavor) String() string {
	if !f.Valid() {
		return fmt.Sprintf("Flavor(%d)", uint8(f))
	}

	return flavorNames[f]
}

// ParseFlavor maps a display name to its flavor. Names are case sensitive.
func ParseFlavor(name string) (Flavor, error) {
	f, ok := flavorsByName[name]
	if !ok {
		return 0, fmt.Errorf("Failed to parse flavor '%s': %w", name, ErrUnknownFlavor)
	}

	return f, nil
}

// Flavors returns every defined flavor in wire order.
func Flavors() []Flavor {
	flavors := make([]Flavor, NumFlavors)
	for i := range flavors {
		flavors[i] = Flavor(i)
	}

	return flavors
}
