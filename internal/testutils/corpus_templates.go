package testutils

// Intent identifiers produced by the corpus generator.
const (
	IntentGreet      = "greet"
	IntentWeather    = "weather"
	IntentBookFlight = "book_flight"
	IntentPlayMusic  = "play_music"
)

// Entity types produced by the corpus generator.
const (
	TypeLocation = "LOCATION"
	TypeDate     = "DATE"
	TypePerson   = "PERSON"
)

// slotFill is one placeholder of an expression template. Role and
// EntityType are empty for literal text.
type slotFill struct {
	Role       string
	EntityType string
	Values     []string
}

// ExpressionTemplate describes how to generate expressions for one intent.
// Parts alternate freely between literal text and entity slots.
type ExpressionTemplate struct {
	Intent string
	Parts  []templatePart
}

// templatePart is either a literal (Literal set) or a slot.
type templatePart struct {
	Literal string
	Slot    *slotFill
}

func lit(s string) templatePart { return templatePart{Literal: s} }

func slot(role, entityType string, values []string) templatePart {
	return templatePart{Slot: &slotFill{Role: role, EntityType: entityType, Values: values}}
}

// Value pools for entity slots.
var (
	Cities  = []string{"Paris", "Lyon", "Berlin", "Madrid", "Tokyo", "Oslo", "Lisbon", "Rome", "Dublin", "Vienna"}
	Dates   = []string{"today", "tomorrow", "on monday", "next week", "this weekend"}
	Artists = []string{"Miles Davis", "Nina Simone", "Daft Punk", "Bach", "Björk", "Fela Kuti"}
)

// CorpusTemplates is the default template set of GenerateCorpus.
var CorpusTemplates = []ExpressionTemplate{
	{Intent: IntentGreet, Parts: []templatePart{lit("hello there")}},
	{Intent: IntentGreet, Parts: []templatePart{lit("good morning")}},
	{Intent: IntentGreet, Parts: []templatePart{lit("hi, how are you?")}},
	{Intent: IntentWeather, Parts: []templatePart{
		lit("what is the weather in "), slot("city", TypeLocation, Cities),
	}},
	{Intent: IntentWeather, Parts: []templatePart{
		lit("will it rain in "), slot("city", TypeLocation, Cities), lit(" "), slot("date", TypeDate, Dates),
	}},
	{Intent: IntentBookFlight, Parts: []templatePart{
		lit("book a flight from "), slot("origin", TypeLocation, Cities),
		lit(" to "), slot("destination", TypeLocation, Cities),
	}},
	{Intent: IntentBookFlight, Parts: []templatePart{
		lit("I need to fly to "), slot("destination", TypeLocation, Cities), lit(" "), slot("date", TypeDate, Dates),
	}},
	{Intent: IntentPlayMusic, Parts: []templatePart{
		lit("play something by "), slot("artist", TypePerson, Artists),
	}},
	{Intent: IntentPlayMusic, Parts: []templatePart{
		lit("put on "), slot("artist", TypePerson, Artists), lit(" please"),
	}},
}
