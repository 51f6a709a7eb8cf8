// Package normalize implements the deterministic normalization rules of
// spec.md §4.5: manufacturer canonicalization, OEM/rebrand resolution,
// accessory-prefix detection, and product-type derivation. Every table
// here is closed, per spec.md's "closed alias table" / "closed table"
// language — unrecognized input passes through rather than guessing.
package normalize

import (
	"regexp"
	"strings"

	"github.com/kunzeritter/docpipeline/internal/model"
)

// manufacturerAliases maps case-folded, punctuation-stripped variants to
// their canonical display name. Extend this table, never branch on
// ad hoc string matches elsewhere.
var manufacturerAliases = map[string]string{
	"hp":              "HP Inc.",
	"hewlett packard":  "HP Inc.",
	"hp inc":          "HP Inc.",
	"canon":           "Canon Inc.",
	"canon inc":       "Canon Inc.",
	"xerox":           "Xerox Corporation",
	"xerox corp":      "Xerox Corporation",
	"ricoh":           "Ricoh Company, Ltd.",
	"konica minolta":  "Konica Minolta, Inc.",
	"konica":          "Konica Minolta, Inc.",
	"kyocera":         "Kyocera Document Solutions Inc.",
	"brother":         "Brother Industries, Ltd.",
	"lexmark":         "Lexmark International, Inc.",
	"epson":           "Seiko Epson Corporation",
	"sharp":           "Sharp Corporation",
	"toshiba":         "Toshiba Tec Corporation",
	"oki":             "OKI Electric Industry Co., Ltd.",
	"utax":            "UTAX",
	"triumph adler":   "Triumph-Adler",
	"ta triumph adler": "Triumph-Adler",
	"savin":           "Ricoh Company, Ltd.",
	"lanier":          "Ricoh Company, Ltd.",
	"gestetner":       "Ricoh Company, Ltd.",
}

var corporateSuffixes = []string{
	" inc", " incorporated", " corp", " corporation", " ltd", " llc",
	" gmbh", " co", " company", " sa", " ag", " plc",
}

// Manufacturer case-folds, strips punctuation, trims a trailing corporate
// suffix, and looks the result up in the closed alias table. An unknown
// input passes through title-cased rather than being rejected, per
// spec.md §4.5.
func Manufacturer(raw string) string {
	key := foldKey(raw)
	if canon, ok := manufacturerAliases[key]; ok {
		return canon
	}
	return titleCase(strings.TrimSpace(raw))
}

func foldKey(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Map(func(r rune) rune {
		switch r {
		case '.', ',':
			return -1
		}
		return r
	}, s)
	for _, suf := range corporateSuffixes {
		s = strings.TrimSuffix(s, suf)
	}
	return strings.TrimSpace(s)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// OEMPurpose scopes an OEM/rebrand mapping's applicability, per spec.md
// §4.5's "per-row applicability set".
type OEMPurpose string

const (
	PurposeErrorCodes  OEMPurpose = "error_codes"
	PurposeParts       OEMPurpose = "parts"
	PurposeAccessories OEMPurpose = "accessories"
)

// oemRule is one row of the closed (brand, model_regex) -> oem_brand
// table.
type oemRule struct {
	brand      string
	modelRe    *regexp.Regexp
	oemBrand   string
	applicable map[OEMPurpose]bool
}

// oemRules is intentionally small and closed: real OEM/rebrand
// relationships in the printer/MFP market, where the badge on the case
// names one company but the error codes and parts come from whoever
// actually built the engine.
var oemRules = []oemRule{
	{
		brand:      "Konica Minolta, Inc.",
		modelRe:    regexp.MustCompile(`[45]000i`),
		oemBrand:   "Brother Industries, Ltd.",
		applicable: map[OEMPurpose]bool{PurposeErrorCodes: true, PurposeParts: true},
	},
	{
		brand:      "Konica Minolta, Inc.",
		modelRe:    regexp.MustCompile(`(?i)(?:bizhub\s+)?40[257]0i?`),
		oemBrand:   "Lexmark International, Inc.",
		applicable: map[OEMPurpose]bool{PurposeErrorCodes: true, PurposeParts: true},
	},
	{
		brand:      "Lexmark International, Inc.",
		modelRe:    regexp.MustCompile(`(?i)^C[SX]9\d{2}`),
		oemBrand:   "Konica Minolta, Inc.",
		applicable: map[OEMPurpose]bool{PurposeErrorCodes: true, PurposeParts: true},
	},
	{
		brand:      "Lexmark International, Inc.",
		modelRe:    regexp.MustCompile(`(?i)^MX6\d{2}`),
		oemBrand:   "Konica Minolta, Inc.",
		applicable: map[OEMPurpose]bool{PurposeErrorCodes: true, PurposeParts: true},
	},
	{
		// UTAX and Triumph-Adler are Kyocera rebrands: every model.
		brand:      "UTAX",
		modelRe:    regexp.MustCompile(`.*`),
		oemBrand:   "Kyocera Document Solutions Inc.",
		applicable: map[OEMPurpose]bool{PurposeErrorCodes: true, PurposeParts: true, PurposeAccessories: true},
	},
	{
		brand:      "Triumph-Adler",
		modelRe:    regexp.MustCompile(`.*`),
		oemBrand:   "Kyocera Document Solutions Inc.",
		applicable: map[OEMPurpose]bool{PurposeErrorCodes: true, PurposeParts: true, PurposeAccessories: true},
	},
	{
		brand:      "Xerox Corporation",
		modelRe:    regexp.MustCompile(`(?i)^VersaLink [BC]\d{3}`),
		oemBrand:   "Lexmark International, Inc.",
		applicable: map[OEMPurpose]bool{PurposeErrorCodes: true, PurposeParts: true},
	},
	{
		brand:      "Xerox Corporation",
		modelRe:    regexp.MustCompile(`(?i)^AltaLink [BC]\d{4}`),
		oemBrand:   "Fujifilm Business Innovation Corp.",
		applicable: map[OEMPurpose]bool{PurposeErrorCodes: true, PurposeParts: true},
	},
	{
		brand:      "Toshiba Tec Corporation",
		modelRe:    regexp.MustCompile(`(?i)^e-STUDIO [3-5]89CS`),
		oemBrand:   "Lexmark International, Inc.",
		applicable: map[OEMPurpose]bool{PurposeErrorCodes: true, PurposeParts: true},
	},
}

// EffectiveManufacturer returns the OEM brand when (brand, model) matches
// a rule applicable to purpose, otherwise brand unchanged — spec.md
// §4.5's "effective manufacturer for a given purpose."
func EffectiveManufacturer(brand, model string, purpose OEMPurpose) string {
	for _, rule := range oemRules {
		if !strings.EqualFold(rule.brand, brand) {
			continue
		}
		if !rule.applicable[purpose] {
			continue
		}
		if rule.modelRe.MatchString(model) {
			return rule.oemBrand
		}
	}
	return brand
}

// accessoryRule maps a model-code prefix/regex to a product type. Prefixes
// take precedence over manufacturer-series heuristics, per spec.md §4.5.
type accessoryRule struct {
	re          *regexp.Regexp
	productType model.ProductType
}

var accessoryRules = []accessoryRule{
	{regexp.MustCompile(`(?i)^FS-?\d+`), model.ProductFinisher},
	{regexp.MustCompile(`(?i)^SD-?\d+`), model.ProductSaddleFinisher},
	{regexp.MustCompile(`(?i)^PF-?\d+`), model.ProductPaperFeeder},
	{regexp.MustCompile(`(?i)^TN-?\d+`), model.ProductTonerCartridge},
	{regexp.MustCompile(`(?i)^DR-?\d+`), model.ProductDrumUnit},
	{regexp.MustCompile(`(?i)^FK-?\d+`), model.ProductFaxKit},
	{regexp.MustCompile(`(?i)^HD-?\d+`), model.ProductHardDrive},
	{regexp.MustCompile(`(?i)^IC-?\d+`), model.ProductImageController},
	{regexp.MustCompile(`(?i)^RU-?\d+`), model.ProductRelayUnit},
	{regexp.MustCompile(`(?i)^AU-?\d+`), model.ProductAuthenticationUnit},
}

// seriesProductType maps a normalized series name to its product type,
// used when no accessory prefix matches.
var seriesProductType = map[string]model.ProductType{
	"imagerunner advance": model.ProductLaserMultifunction,
	"bizhub":               model.ProductLaserMultifunction,
	"workcentre":           model.ProductLaserMultifunction,
	"versalink":            model.ProductLaserProductionPrint,
	"ecosys":               model.ProductLaserPrinter,
	"officejet":            model.ProductInkjetMultifunction,
	"laserjet":             model.ProductLaserPrinter,
}

// DetectAccessoryType checks modelCode against accessoryRules, returning
// (type, true) on a match. Accessory detection takes precedence over
// series-based product-type derivation per spec.md §4.5.
func DetectAccessoryType(modelCode string) (model.ProductType, bool) {
	for _, rule := range accessoryRules {
		if rule.re.MatchString(modelCode) {
			return rule.productType, true
		}
	}
	return "", false
}

// ProductType derives a product type for modelCode: accessory prefix
// first, then the series->type map keyed by normalized seriesName,
// falling back to laser_multifunction when manufacturerKnown and nothing
// else matched, per spec.md §4.5.
func ProductType(modelCode, seriesName string, manufacturerKnown bool) model.ProductType {
	if t, ok := DetectAccessoryType(modelCode); ok {
		return t
	}
	if t, ok := seriesProductType[strings.ToLower(strings.TrimSpace(seriesName))]; ok {
		return t
	}
	if manufacturerKnown {
		return model.ProductLaserMultifunction
	}
	// No accessory prefix, no series match, and no known manufacturer to
	// fall back on: the caller must treat this as a closed-vocabulary
	// miss (spec.md §4.5's "a product_type not in the closed vocabulary
	// is a permanent error"), not default it to something plausible.
	return ""
}
