package entity

import "github.com/rewired-gh/polygraph/internal/models"

// Curated dictionaries of names that recur in Polymarket questions. Each
// string is one dictionary entry: its whole-word, case-insensitive pattern is
// compiled at startup and its lowercased form is the normalized key. Aliases
// ("Biden" vs "President Biden") are deliberately separate entries with
// separate keys, so both may match the same text.
//
// Keys within one dictionary must be unique; addEntries enforces that at
// construction time.

var peopleNames = []string{
	"Trump",
	"Donald Trump",
	"Biden",
	"President Biden",
	"Kamala Harris",
	"Putin",
	"Zelensky",
	"Xi Jinping",
	"Elon Musk",
	"Jerome Powell",
	"Netanyahu",
	"Macron",
	"Newsom",
	"Vance",
	"Taylor Swift",
	"Maduro",
}

var companyNames = []string{
	"Tesla",
	"Apple",
	"Microsoft",
	"Nvidia",
	"OpenAI",
	"Google",
	"Amazon",
	"Meta",
	"SpaceX",
	"TikTok",
	"Boeing",
	"Disney",
}

var cryptoNames = []string{
	"Bitcoin",
	"BTC",
	"Ethereum",
	"ETH",
	"Solana",
	"Dogecoin",
	"XRP",
	"Tether",
}

var countryNames = []string{
	"United States",
	"China",
	"Russia",
	"Ukraine",
	"Israel",
	"Iran",
	"Taiwan",
	"India",
	"Mexico",
	"Venezuela",
	"North Korea",
	"Greenland",
}

var organizationNames = []string{
	"Fed",
	"Federal Reserve",
	"NATO",
	"OPEC",
	"SEC",
	"NASA",
	"ECB",
	"FIFA",
	"NFL",
	"NBA",
	"Supreme Court",
	"Congress",
	"White House",
	"United Nations",
}

// dictionaries pairs each curated list with its entity type, in the fixed
// order the extractor scans them.
var dictionaries = []struct {
	names []string
	typ   models.EntityType
}{
	{peopleNames, models.EntityPerson},
	{companyNames, models.EntityCompany},
	{cryptoNames, models.EntityCrypto},
	{countryNames, models.EntityCountry},
	{organizationNames, models.EntityOrganization},
}
