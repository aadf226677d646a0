package businessflow

import (
	"strings"

	"github.com/amirphl/ecoestudiante-calc/utils"
)

// Transport modes accepted by ComputeTransport. Matching is case-sensitive.
const (
	ModeCar        = "car"
	ModeMotorcycle = "motorcycle"
	ModeBus        = "bus"
	ModeMetro      = "metro"
	ModeBicycle    = "bicycle"
	ModeWalking    = "walking"
	ModePlane      = "plane"
)

// Canonical fuel names
const (
	FuelGasoline = "gasoline"
	FuelDiesel   = "diesel"
	FuelElectric = "electric"
	FuelHybrid   = "hybrid"
)

var fuelAliases = map[string]string{
	"gasoline":  FuelGasoline,
	"gasolina":  FuelGasoline,
	"petrol":    FuelGasoline,
	"diesel":    FuelDiesel,
	"diésel":    FuelDiesel,
	"electric":  FuelElectric,
	"electrico": FuelElectric,
	"eléctrico": FuelElectric,
	"ev":        FuelElectric,
	"hybrid":    FuelHybrid,
	"hibrido":   FuelHybrid,
	"híbrido":   FuelHybrid,
}

// NormalizeFuel maps a fuel name or alias to its canonical form.
// Unknown values are returned unchanged.
func NormalizeFuel(fuel string) string {
	if canonical, ok := fuelAliases[strings.ToLower(strings.TrimSpace(fuel))]; ok {
		return canonical
	}
	return fuel
}

// TransportSubcategory derives the factor subcategory for a trip.
func TransportSubcategory(mode string, fuel *string) (string, error) {
	switch mode {
	case ModeCar, ModeMotorcycle:
		if fuel == nil || utils.IsBlank(*fuel) {
			return "", ErrFuelTypeRequired
		}
		return mode + "_" + NormalizeFuel(*fuel), nil
	case ModeBus, ModeMetro, ModeBicycle, ModeWalking, ModePlane:
		return mode, nil
	default:
		return "", ErrInvalidTransportMode
	}
}

var modeLabels = map[string]string{
	ModeCar:        "Auto",
	ModeBus:        "Bus/Transporte Público",
	ModeMetro:      "Metro/Tren",
	ModeBicycle:    "Bicicleta",
	ModeWalking:    "Caminando",
	ModePlane:      "Avión",
	ModeMotorcycle: "Motocicleta",
}

var fuelLabels = map[string]string{
	FuelGasoline: "Gasolina",
	FuelDiesel:   "Diesel",
	FuelElectric: "Eléctrico",
	FuelHybrid:   "Híbrido",
}

// transportLabel renders the human-readable subcategory shown in history.
func transportLabel(mode, fuel string) string {
	label, ok := modeLabels[mode]
	if !ok {
		label = mode
	}
	if fuel == "" {
		return label
	}

	canonical := NormalizeFuel(fuel)
	fuelLabel, ok := fuelLabels[canonical]
	if !ok {
		fuelLabel = fuel
	}
	return label + " - " + fuelLabel
}

// electricityLabel joins the selected appliances, or falls back to a generic label.
func electricityLabel(appliances []string) string {
	names := make([]string, 0, len(appliances))
	for _, a := range appliances {
		if a = strings.TrimSpace(a); a != "" {
			names = append(names, a)
		}
	}
	if len(names) == 0 {
		return "Electricidad"
	}
	return strings.Join(names, ", ")
}
