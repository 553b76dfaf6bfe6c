package js8call

// OOB is the out-of-band designator returned for frequencies outside every
// known amateur band.
const OOB = "OOB"

// bandRange associates a band designator with its frequency range in Hz.
type bandRange struct {
	name string
	min  int64
	max  int64
}

// bands maps amateur frequency band designators to their frequency ranges,
// ordered from lowest to highest frequency.
var bands = []bandRange{
	{"2190m", 136000, 137000},
	{"630m", 472000, 479000},
	{"560m", 501000, 504000},
	{"160m", 1800000, 2000000},
	{"80m", 3500000, 4000000},
	{"60m", 5060000, 5450000},
	{"40m", 7000000, 7300000},
	{"30m", 10000000, 10150000},
	{"20m", 14000000, 14350000},
	{"17m", 18068000, 18168000},
	{"15m", 21000000, 21450000},
	{"12m", 24890000, 24990000},
	{"10m", 28000000, 29700000},
	{"6m", 50000000, 54000000},
	{"4m", 70000000, 71000000},
	{"2m", 144000000, 148000000},
	{"1.25m", 222000000, 225000000},
	{"70cm", 420000000, 450000000},
	{"33cm", 902000000, 928000000},
	{"23cm", 1240000000, 1300000000},
	{"13cm", 2300000000, 2450000000},
	{"9cm", 3300000000, 3500000000},
	{"6cm", 5650000000, 5925000000},
	{"3cm", 10000000000, 10500000000},
	{"1.25cm", 24000000000, 24250000000},
	{"6mm", 47000000000, 47200000000},
	{"4mm", 75500000000, 81000000000},
	{"2.5mm", 119980000000, 120020000000},
	{"2mm", 142000000000, 149000000000},
	{"1mm", 241000000000, 250000000000},
}

// FreqToBand returns the band designator for the given frequency in Hz,
// like "40m". It returns OOB if the frequency is outside every known band.
func FreqToBand(freq int64) string {
	if freq <= 0 {
		return OOB
	}

	for _, band := range bands {
		if freq >= band.min && freq <= band.max {
			return band.name
		}
	}

	return OOB
}

// BandFreqRange returns the frequency range in Hz for the given band
// designator, like "40m". It returns (0, 0) if the band name is unknown.
func BandFreqRange(band string) (minFreq int64, maxFreq int64) {
	for _, b := range bands {
		if b.name == band {
			return b.min, b.max
		}
	}

	return 0, 0
}

// Bands returns all known band designators ordered from lowest to highest
// frequency.
func Bands() []string {
	names := make([]string, 0, len(bands))
	for _, band := range bands {
		names = append(names, band.name)
	}

	return names
}
