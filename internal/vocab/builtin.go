package vocab

import "slices"

// Builtin returns the default vocabulary: Sanskrit transliteration stems.
func Builtin() Vocabulary {
	return slices.Clone(corpus)
}

var corpus = Vocabulary{
	"agni",
	"akasha",
	"amrita",
	"ananda",
	"artha",
	"atman",
	"bhakti",
	"bindu",
	"bodhi",
	"chandra",
	"chitta",
	"deva",
	"dharma",
	"dhyana",
	"diksha",
	"ganga",
	"guna",
	"guru",
	"hamsa",
	"indra",
	"jiva",
	"jnana",
	"jyoti",
	"kala",
	"kama",
	"karma",
	"kavi",
	"kirti",
	"lila",
	"loka",
	"manas",
	"mantra",
	"maya",
	"megha",
	"moksha",
	"mudra",
	"nada",
	"nadi",
	"naga",
	"nila",
	"ojas",
	"padma",
	"prajna",
	"prana",
	"rasa",
	"rishi",
	"rita",
	"sakti",
	"sangha",
	"sattva",
	"satya",
	"shanti",
	"shiva",
	"soma",
	"surya",
	"sutra",
	"tapas",
	"tejas",
	"turiya",
	"vayu",
	"veda",
	"vidya",
	"yantra",
	"yoga",
}
