// Package phone normalizes WhatsApp sender addresses and expands a number
// into the representations customers are stored under.
package phone

import (
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// ChannelPrefix is the provider's address prefix for the WhatsApp channel.
const ChannelPrefix = "whatsapp:"

// Normalize strips the channel prefix and any whitespace from a provider address.
func Normalize(address string) string {
	a := strings.TrimSpace(address)
	if len(a) >= len(ChannelPrefix) && strings.EqualFold(a[:len(ChannelPrefix)], ChannelPrefix) {
		a = a[len(ChannelPrefix):]
	}
	return strings.Join(strings.Fields(a), "")
}

// Variants returns the forms a number may have been stored as: as received,
// without the leading "+", in national dialing form and in E.164 form with
// and without "+". The as-received form comes first and duplicates are
// removed. Numbers that cannot be parsed only yield the first two forms.
func Variants(number, countryCode string) []string {
	number = Normalize(number)
	if number == "" {
		return nil
	}

	out := []string{number}
	seen := map[string]bool{number: true}
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}

	add(strings.TrimPrefix(number, "+"))

	num, region, ok := parse(number, countryCode)
	if !ok {
		return out
	}
	national := phonenumbers.GetNationalSignificantNumber(num)
	if region != "" {
		add(phonenumbers.GetNddPrefixForRegion(region, true) + national)
	} else {
		add(national)
	}
	e164 := phonenumbers.Format(num, phonenumbers.E164)
	add(e164)
	add(strings.TrimPrefix(e164, "+"))
	return out
}

// International returns number in E.164 form, or the normalized input when it
// cannot be interpreted.
func International(number, countryCode string) string {
	number = Normalize(number)
	num, _, ok := parse(number, countryCode)
	if !ok {
		return number
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

// parse reads number relative to the region that owns countryCode. It returns
// the main region of the parsed number's country code, which differs from the
// default when the number carries its own "+" country code.
func parse(number, countryCode string) (*phonenumbers.PhoneNumber, string, bool) {
	if number == "" {
		return nil, "", false
	}
	num, err := phonenumbers.Parse(number, defaultRegion(countryCode))
	if err != nil {
		return nil, "", false
	}
	if phonenumbers.GetNationalSignificantNumber(num) == "" {
		return nil, "", false
	}
	region := phonenumbers.GetRegionCodeForCountryCode(int(num.GetCountryCode()))
	if region == "ZZ" {
		region = ""
	}
	return num, region, true
}

func defaultRegion(countryCode string) string {
	cc, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(countryCode), "+"))
	if err != nil {
		return ""
	}
	region := phonenumbers.GetRegionCodeForCountryCode(cc)
	if region == "ZZ" {
		return ""
	}
	return region
}
