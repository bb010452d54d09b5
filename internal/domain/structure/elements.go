package structure

import "strings"

// element holds the per-element data the pipeline needs: nuclear charge for
// fingerprint weighting, standard atomic weight for component selection, and
// a metal flag for the organometallic vote.
type element struct {
	number int
	weight float64
	metal  bool
}

// elements maps element symbols to their data, H through Lr.  Metalloids
// (B, Si, Ge, As, Sb, Te, At) count as non-metals for the organometallic
// criterion.
var elements = map[string]element{
	"H":  {1, 1.008, false},
	"He": {2, 4.003, false},
	"Li": {3, 6.941, true},
	"Be": {4, 9.012, true},
	"B":  {5, 10.811, false},
	"C":  {6, 12.011, false},
	"N":  {7, 14.007, false},
	"O":  {8, 15.999, false},
	"F":  {9, 18.998, false},
	"Ne": {10, 20.180, false},
	"Na": {11, 22.990, true},
	"Mg": {12, 24.305, true},
	"Al": {13, 26.982, true},
	"Si": {14, 28.086, false},
	"P":  {15, 30.974, false},
	"S":  {16, 32.066, false},
	"Cl": {17, 35.453, false},
	"Ar": {18, 39.948, false},
	"K":  {19, 39.098, true},
	"Ca": {20, 40.078, true},
	"Sc": {21, 44.956, true},
	"Ti": {22, 47.867, true},
	"V":  {23, 50.942, true},
	"Cr": {24, 51.996, true},
	"Mn": {25, 54.938, true},
	"Fe": {26, 55.845, true},
	"Co": {27, 58.933, true},
	"Ni": {28, 58.693, true},
	"Cu": {29, 63.546, true},
	"Zn": {30, 65.38, true},
	"Ga": {31, 69.723, true},
	"Ge": {32, 72.631, false},
	"As": {33, 74.922, false},
	"Se": {34, 78.972, false},
	"Br": {35, 79.904, false},
	"Kr": {36, 83.798, false},
	"Rb": {37, 85.468, true},
	"Sr": {38, 87.62, true},
	"Y":  {39, 88.906, true},
	"Zr": {40, 91.224, true},
	"Nb": {41, 92.906, true},
	"Mo": {42, 95.95, true},
	"Tc": {43, 98.0, true},
	"Ru": {44, 101.07, true},
	"Rh": {45, 102.906, true},
	"Pd": {46, 106.42, true},
	"Ag": {47, 107.868, true},
	"Cd": {48, 112.414, true},
	"In": {49, 114.818, true},
	"Sn": {50, 118.711, true},
	"Sb": {51, 121.760, false},
	"Te": {52, 127.60, false},
	"I":  {53, 126.904, false},
	"Xe": {54, 131.294, false},
	"Cs": {55, 132.905, true},
	"Ba": {56, 137.328, true},
	"La": {57, 138.905, true},
	"Ce": {58, 140.116, true},
	"Pr": {59, 140.908, true},
	"Nd": {60, 144.242, true},
	"Pm": {61, 145.0, true},
	"Sm": {62, 150.36, true},
	"Eu": {63, 151.964, true},
	"Gd": {64, 157.25, true},
	"Tb": {65, 158.925, true},
	"Dy": {66, 162.500, true},
	"Ho": {67, 164.930, true},
	"Er": {68, 167.259, true},
	"Tm": {69, 168.934, true},
	"Yb": {70, 173.045, true},
	"Lu": {71, 174.967, true},
	"Hf": {72, 178.49, true},
	"Ta": {73, 180.948, true},
	"W":  {74, 183.84, true},
	"Re": {75, 186.207, true},
	"Os": {76, 190.23, true},
	"Ir": {77, 192.217, true},
	"Pt": {78, 195.085, true},
	"Au": {79, 196.967, true},
	"Hg": {80, 200.592, true},
	"Tl": {81, 204.383, true},
	"Pb": {82, 207.2, true},
	"Bi": {83, 208.980, true},
	"Po": {84, 209.0, true},
	"At": {85, 210.0, false},
	"Rn": {86, 222.0, false},
	"Fr": {87, 223.0, true},
	"Ra": {88, 226.0, true},
	"Ac": {89, 227.0, true},
	"Th": {90, 232.038, true},
	"Pa": {91, 231.036, true},
	"U":  {92, 238.029, true},
	"Np": {93, 237.0, true},
	"Pu": {94, 244.0, true},
	"Am": {95, 243.0, true},
	"Cm": {96, 247.0, true},
	"Bk": {97, 247.0, true},
	"Cf": {98, 251.0, true},
	"Es": {99, 252.0, true},
	"Fm": {100, 257.0, true},
	"Md": {101, 258.0, true},
	"No": {102, 259.0, true},
	"Lr": {103, 266.0, true},
}

// NormalizeSymbol canonicalises an element symbol: first letter upper-case,
// rest lower-case, surrounding whitespace removed.  Atom labels like "C1" or
// "Fe12" are not handled here; see SymbolFromLabel.
func NormalizeSymbol(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if len(s) == 1 {
		return strings.ToUpper(s)
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// SymbolFromLabel extracts the element symbol from an atom label by stripping
// the trailing numeric suffix: "C1" → "C", "Fe12" → "Fe".
func SymbolFromLabel(label string) string {
	end := len(label)
	for end > 0 && label[end-1] >= '0' && label[end-1] <= '9' {
		end--
	}
	return NormalizeSymbol(label[:end])
}

// AtomicNumber returns the nuclear charge for an element symbol.
// The second return value is false for unknown symbols.
func AtomicNumber(symbol string) (int, bool) {
	e, ok := elements[NormalizeSymbol(symbol)]
	if !ok {
		return 0, false
	}
	return e.number, true
}

// AtomicWeight returns the standard atomic weight for an element symbol.
// The second return value is false for unknown symbols.
func AtomicWeight(symbol string) (float64, bool) {
	e, ok := elements[NormalizeSymbol(symbol)]
	if !ok {
		return 0, false
	}
	return e.weight, true
}

// IsMetal reports whether the element symbol denotes a metal.
// Unknown symbols report false.
func IsMetal(symbol string) bool {
	e, ok := elements[NormalizeSymbol(symbol)]
	return ok && e.metal
}
