package service

// Mode selects which assessment pipeline a request runs through.
type Mode string

const (
	// ModeTranscribe transcribes free speech and scores it.
	ModeTranscribe Mode = "transcribe"
	// ModeReading compares a read-aloud recording against a reference passage.
	ModeReading Mode = "reading"
	// ModeWriting scores a piece of text; no audio involved.
	ModeWriting Mode = "writing"
)

// Criterion is one scored dimension of an assessment.
type Criterion string

const (
	Pronunciation Criterion = "pronunciation"
	Vocabulary    Criterion = "vocabulary"
	Fluency       Criterion = "fluency"
	Grammer       Criterion = "grammer" // wire key the browser client reads
	Structure     Criterion = "structure"
	Accuracy      Criterion = "accuracy"
	Intonation    Criterion = "intonation"
)

// overallKey is the extra feedback entry every template asks for.
const overallKey = "overall"

type criterionInfo struct {
	label    string
	hint     string // placeholder shown in the JSON skeleton
	guidance string // what the model should consider when scoring
}

var criterionInfos = map[Criterion]criterionInfo{
	Pronunciation: {"Pronunciation", "specific feedback on pronunciation", "Correct sound production, clarity of speech"},
	Vocabulary:    {"Vocabulary", "specific feedback on vocabulary", "Correct use of words, appropriate vocabulary"},
	Fluency:       {"Fluency", "specific feedback on reading flow and speed", "Smooth pace, appropriate pausing, lack of hesitation"},
	Grammer:       {"Grammer", "specific feedback on grammar", "Correct grammar, correct use of punctuation"},
	Structure:     {"Structure", "specific feedback on structure", "Proper organization of sentences, coherence"},
	Accuracy:      {"Accuracy", "specific feedback on word accuracy and completeness", "Correct words, no omissions or additions"},
	Intonation:    {"Intonation", "specific feedback on expression and tone", "Appropriate expression, tone variation, emphasis"},
}

// Label returns the section header used in combined feedback.
func (c Criterion) Label() string {
	if info, ok := criterionInfos[c]; ok {
		return info.label
	}
	return string(c)
}

// modeCriteria lists each mode's criteria in prompt and feedback order.
var modeCriteria = map[Mode][]Criterion{
	ModeTranscribe: {Pronunciation, Vocabulary, Fluency, Grammer},
	ModeReading:    {Pronunciation, Fluency, Accuracy, Intonation},
	ModeWriting:    {Pronunciation, Grammer, Structure, Vocabulary},
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	_, ok := modeCriteria[m]
	return ok
}

// Criteria returns the criteria scored in mode m. The slice is a copy.
func (m Mode) Criteria() []Criterion {
	return append([]Criterion(nil), modeCriteria[m]...)
}

// UsesAudio reports whether the mode starts from a recording.
func (m Mode) UsesAudio() bool {
	return m == ModeTranscribe || m == ModeReading
}
