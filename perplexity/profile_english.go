package perplexity

import "sync"

// englishSample is a representative corpus of ordinary English prose used
// to seed the built-in profile's n-gram frequency table. It intentionally
// favors plain conversational and technical writing over verse or lists,
// since that is the register most guard-layer traffic resembles.
const englishSample = `the quick brown fox jumps over the lazy dog while the sun sets slowly
behind the hills and the evening breeze carries the scent of rain across
the fields where travelers once rested before continuing their journey to
the city that never sleeps. she asked what the weather would be like
tomorrow and whether it would be wise to bring an umbrella on the trip.
could you please summarize this document and explain the main points in
a few short sentences so that anyone reading it can understand without
needing additional context. the meeting has been rescheduled to next
tuesday afternoon and all participants should confirm their availability
as soon as possible. thank you for your patience while we resolve this
issue and please let us know if you have any further questions or
concerns about the process. our customer support team is available
around the clock to help with billing account settings and general
product questions. the recipe calls for two cups of flour one teaspoon
of salt and a pinch of sugar mixed together before adding the wet
ingredients slowly while stirring continuously. researchers have found
that regular exercise and a balanced diet contribute significantly to
long term health outcomes across a wide range of age groups. the board
of directors will convene on friday to review the quarterly financial
results and discuss strategic priorities for the coming year. please
remember to back up your files before installing the update since the
process may require a restart of the system. the library is open from
nine in the morning until eight in the evening on weekdays and has
shorter hours on weekends. a gentle reminder that the deadline for
submissions is the end of this month and late entries will not be
considered. it was a bright cold day in april and the clocks were
striking thirteen somewhere far away. learning a new language takes
time patience and consistent daily practice over many months.`

var (
	englishOnce    sync.Once
	englishProfile Profile
)

// EnglishProfile returns the package's lazily-built English n-gram
// profile at DefaultOrder.
func EnglishProfile() Profile {
	englishOnce.Do(func() {
		englishProfile = BuildProfile("english", englishSample, DefaultOrder)
	})
	return englishProfile
}
