// Package meds implements the deterministic medication and vital-sign
// extractor.
//
// The package is built around an immutable reference table of medications
// common in German long-term care: canonical spelling, phonetic variant
// spellings produced by speech recognition, the usual dosage strengths, and
// a category label. [FindMatches] scans transcript text against the table
// and resolves dosages from a fixed character window around each hit;
// [ExtractVitals] pulls normalized vital-sign strings out of the same text
// with independent per-vital regular expressions. Both are pure functions of
// their input, with no network, model, or state involved, which is what lets the
// normalization pipeline use them to reinforce (and fall back from)
// generative output.
package meds

// Reference is one immutable row of the medication reference table.
type Reference struct {
	// Canonical is the preferred spelling used in documentation.
	Canonical string

	// Variants are lowercase spellings speech recognition produces for this
	// medication, including the canonical spelling itself.
	Variants []string

	// CommonDosages are the usual dosage strings for this medication,
	// normalized (e.g., "5 mg"). Dosage resolution prefers these over raw
	// window text.
	CommonDosages []string

	// Category is the pharmacological group label rendered in documentation.
	Category string
}

// References returns the built-in reference table. The returned slice is
// shared; callers must not modify it.
func References() []Reference {
	return referenceTable
}

// referenceTable is the built-in formulary. Variant lists are lowercase.
var referenceTable = []Reference{
	{
		Canonical:     "Ramipril",
		Variants:      []string{"ramipril", "rami pril", "ramipríl", "ramiprel"},
		CommonDosages: []string{"2,5 mg", "5 mg", "10 mg"},
		Category:      "ACE-Hemmer",
	},
	{
		Canonical:     "Metoprolol",
		Variants:      []string{"metoprolol", "metoprolol succinat", "meto prolol", "metoprolo"},
		CommonDosages: []string{"47,5 mg", "95 mg", "50 mg", "100 mg"},
		Category:      "Betablocker",
	},
	{
		Canonical:     "Bisoprolol",
		Variants:      []string{"bisoprolol", "biso prolol", "bisoprolo"},
		CommonDosages: []string{"2,5 mg", "5 mg", "10 mg"},
		Category:      "Betablocker",
	},
	{
		Canonical:     "Torasemid",
		Variants:      []string{"torasemid", "torasemide", "tora semid", "torsemid"},
		CommonDosages: []string{"5 mg", "10 mg", "20 mg"},
		Category:      "Diuretikum",
	},
	{
		Canonical:     "L-Thyroxin",
		Variants:      []string{"l-thyroxin", "l thyroxin", "levothyroxin", "thyroxin"},
		CommonDosages: []string{"50 µg", "75 µg", "100 µg", "125 µg"},
		Category:      "Schilddrüsenhormon",
	},
	{
		Canonical:     "Ibuprofen",
		Variants:      []string{"ibuprofen", "ibu profen", "ibuprofin"},
		CommonDosages: []string{"400 mg", "600 mg", "800 mg"},
		Category:      "Analgetikum",
	},
	{
		Canonical:     "Paracetamol",
		Variants:      []string{"paracetamol", "para cetamol", "paracetamol"},
		CommonDosages: []string{"500 mg", "1000 mg"},
		Category:      "Analgetikum",
	},
	{
		Canonical:     "Metamizol",
		Variants:      []string{"metamizol", "novaminsulfon", "novalgin", "meta mizol"},
		CommonDosages: []string{"500 mg", "20 Tropfen", "30 Tropfen"},
		Category:      "Analgetikum",
	},
	{
		Canonical:     "Marcumar",
		Variants:      []string{"marcumar", "phenprocoumon", "markumar", "marku mar"},
		CommonDosages: []string{"3 mg", "1,5 mg"},
		Category:      "Antikoagulans",
	},
	{
		Canonical:     "Insulin glargin",
		Variants:      []string{"insulin glargin", "lantus", "insulin", "glargin"},
		CommonDosages: []string{"10 IE", "12 IE", "16 IE", "20 IE"},
		Category:      "Antidiabetikum",
	},
	{
		Canonical:     "Metformin",
		Variants:      []string{"metformin", "met formin", "metformen"},
		CommonDosages: []string{"500 mg", "850 mg", "1000 mg"},
		Category:      "Antidiabetikum",
	},
	{
		Canonical:     "Pantoprazol",
		Variants:      []string{"pantoprazol", "panto prazol", "pantozol"},
		CommonDosages: []string{"20 mg", "40 mg"},
		Category:      "Protonenpumpenhemmer",
	},
	{
		Canonical:     "Simvastatin",
		Variants:      []string{"simvastatin", "simva statin", "simvastatine"},
		CommonDosages: []string{"20 mg", "40 mg"},
		Category:      "Statin",
	},
	{
		Canonical:     "Amlodipin",
		Variants:      []string{"amlodipin", "amlo dipin", "amlodipine"},
		CommonDosages: []string{"5 mg", "10 mg"},
		Category:      "Calciumantagonist",
	},
	{
		Canonical:     "Mirtazapin",
		Variants:      []string{"mirtazapin", "mirta zapin", "mirtazapine"},
		CommonDosages: []string{"15 mg", "30 mg"},
		Category:      "Antidepressivum",
	},
	{
		Canonical:     "Melperon",
		Variants:      []string{"melperon", "mel peron", "melperone"},
		CommonDosages: []string{"25 mg", "50 mg", "10 Tropfen"},
		Category:      "Neuroleptikum",
	},
	{
		Canonical:     "Tilidin",
		Variants:      []string{"tilidin", "tili din", "tilidin naloxon"},
		CommonDosages: []string{"50 mg", "100 mg", "20 Tropfen"},
		Category:      "Analgetikum",
	},
	{
		Canonical:     "Movicol",
		Variants:      []string{"movicol", "movi col", "macrogol"},
		CommonDosages: []string{"1 Beutel", "2 Beutel"},
		Category:      "Laxans",
	},
}
