package patterns

import "regexp"

// seedCorrections is the built-in corpus of known speech-recognition
// mishearings in German care documentation, as {misheard, corrected} pairs.
var seedCorrections = [][2]string{
	{"blut druck", "Blutdruck"},
	{"sauerstoff sättigung", "Sauerstoffsättigung"},
	{"medi kamente", "Medikamente"},
	{"ram april", "Ramipril"},
	{"rami pril", "Ramipril"},
	{"bis o prolol", "Bisoprolol"},
	{"pan to prazol", "Pantoprazol"},
	{"nova gin", "Novalgin"},
	{"dekubitus profilaxe", "Dekubitusprophylaxe"},
	{"decubitus", "Dekubitus"},
	{"mobilisierung", "Mobilisation"},
	{"grund pflege", "Grundpflege"},
	{"lagerungs wechsel", "Lagerungswechsel"},
	{"kompressions strümpfe", "Kompressionsstrümpfe"},
	{"in kontinenz", "Inkontinenz"},
	{"essen auf rädern", "Essen auf Rädern"},
}

// seedVocabulary is the built-in domain vocabulary.
var seedVocabulary = []string{
	"blutdruck",
	"sauerstoffsättigung",
	"dekubitusprophylaxe",
	"mobilisation",
	"grundpflege",
	"lagerungswechsel",
	"flüssigkeitszufuhr",
	"nahrungsaufnahme",
	"inkontinenz",
	"sturzprophylaxe",
}

// domainKeywords mark tokens as care vocabulary regardless of length.
var domainKeywords = []string{
	"pflege",
	"medikament",
	"blutdruck",
	"puls",
	"insulin",
	"dekubitus",
	"mobilis",
	"katheter",
	"sonde",
	"verband",
	"prophylaxe",
	"inkontinenz",
}

// professionalPhrases is the fixed second rewrite pass of
// [Store.ApplyLearnedCorrections]: casual caregiver phrasing becomes
// professional documentation language. Applied after the learned patterns,
// in table order.
var professionalPhrases = buildPhraseTable([][2]string{
	{"hat gut gegessen", "hat die Mahlzeiten vollständig eingenommen"},
	{"hat schlecht gegessen", "hat die Mahlzeiten nur teilweise eingenommen"},
	{"hat gut getrunken", "hat ausreichend Flüssigkeit zu sich genommen"},
	{"hat wenig getrunken", "hat zu wenig Flüssigkeit zu sich genommen"},
	{"war gut drauf", "zeigte sich in ausgeglichener Stimmung"},
	{"war schlecht drauf", "zeigte sich in gedrückter Stimmung"},
	{"hat gut geschlafen", "berichtete über erholsamen Schlaf"},
	{"hat schlecht geschlafen", "berichtete über Durchschlafstörungen"},
	{"ist viel rumgelaufen", "zeigte ausgeprägten Bewegungsdrang"},
	{"hat gemeckert", "äußerte Unzufriedenheit"},
	{"war durcheinander", "zeigte sich zeitweise desorientiert"},
})

type phraseRule struct {
	casual       string
	professional string
	re           *regexp.Regexp
}

func buildPhraseTable(pairs [][2]string) []phraseRule {
	rules := make([]phraseRule, 0, len(pairs))
	for _, p := range pairs {
		rules = append(rules, phraseRule{
			casual:       p[0],
			professional: p[1],
			re:           regexp.MustCompile(`(?i)` + regexp.QuoteMeta(p[0])),
		})
	}
	return rules
}
