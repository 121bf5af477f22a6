package laravel

import (
	"sort"
	"strings"

	"github.com/VKCOM/php-parser/pkg/ast"
)

// fakerValues maps faker formatters (lower-cased) to deterministic examples
var fakerValues = map[string]any{
	"name":               "Jane Doe",
	"firstname":          "Jane",
	"lastname":           "Doe",
	"title":              "Dr.",
	"username":           "jdoe",
	"email":              "jane.doe@example.com",
	"safeemail":          "jane.doe@example.com",
	"freeemail":          "jane.doe@example.com",
	"companyemail":       "jane.doe@example.com",
	"password":           "password",
	"phonenumber":        "+15555550100",
	"e164phonenumber":    "+15555550100",
	"address":            "1 Main Street, Springfield, IL 62701",
	"streetaddress":      "1 Main Street",
	"streetname":         "Main Street",
	"buildingnumber":     "1",
	"city":               "Springfield",
	"state":              "Illinois",
	"stateabbr":          "IL",
	"country":            "United States",
	"countrycode":        "US",
	"postcode":           "62701",
	"zipcode":            "62701",
	"latitude":           39.7817,
	"longitude":          -89.6501,
	"company":            "Acme Inc.",
	"jobtitle":           "Engineer",
	"word":               "lorem",
	"sentence":           "Lorem ipsum dolor sit amet.",
	"paragraph":          "Lorem ipsum dolor sit amet, consectetur adipiscing elit.",
	"text":               "Lorem ipsum dolor sit amet, consectetur adipiscing elit.",
	"realtext":           "Lorem ipsum dolor sit amet, consectetur adipiscing elit.",
	"slug":               "lorem-ipsum-dolor",
	"url":                "https://example.com",
	"domainname":         "example.com",
	"imageurl":           "https://example.com/image.png",
	"image":              "https://example.com/image.png",
	"uuid":               ExampleUUID,
	"ean13":              "4006381333931",
	"isbn13":             "9780306406157",
	"randomnumber":       42,
	"randomdigit":        7,
	"randomdigitnotnull": 7,
	"randomfloat":        9.99,
	"boolean":            true,
	"date":               "2024-01-01",
	"time":               "12:00:00",
	"datetime":           ExampleTimestamp,
	"datetimebetween":    ExampleTimestamp,
	"datetimethisyear":   ExampleTimestamp,
	"datetimethismonth":  ExampleTimestamp,
	"datetimethisdecade": ExampleTimestamp,
	"iso8601":            "2024-01-01T00:00:00+0000",
	"unixtime":           1704067200,
	"year":               "2024",
	"month":              "01",
	"monthname":          "January",
	"dayofweek":          "Monday",
	"timezone":           "UTC",
	"hexcolor":           "#336699",
	"colorname":          "blue",
	"currencycode":       "USD",
	"ipv4":               "192.0.2.1",
	"ipv6":               "2001:db8::1",
	"macaddress":         "00:00:5e:00:53:01",
	"useragent":          "Mozilla/5.0",
	"locale":             "en_US",
	"languagecode":       "en",
	"creditcardnumber":   "4111111111111111",
	"iban":               "GB82WEST12345698765432",
	"md5":                "d41d8cd98f00b204e9800998ecf8427e",
	"sha1":               "da39a3ee5e6b4b0d3255bfef95601890afd80709",
	"sha256":             "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
	"numerify":           "123",
	"lexify":             "abc",
	"bothify":            "ab12",
	"regexify":           "abc",
	"emoji":              ":)",
	"filepath":           "/tmp/example.txt",
	"mimetype":           "text/plain",
	"fileextension":      "txt",
}

// fakerGen stands for $this->faker and fake(): properties and methods
// return example values
type fakerGen struct{}

func (fakerGen) property(name string) any {
	return fakerValue(name, nil, nil)
}

func (f fakerGen) call(s *Scope, name string, args []ast.Vertex) any {
	switch strings.ToLower(name) {
	case "unique", "optional", "valid":
		return f
	}
	return fakerValue(name, s, args)
}

func fakerValue(name string, s *Scope, args []ast.Vertex) any {
	lower := strings.ToLower(name)
	switch lower {
	case "numberbetween", "biasednumberbetween":
		if s != nil && len(args) > 0 {
			return toInt(s.Eval(args[0]))
		}
		return 1
	case "randomelement":
		if s != nil && len(args) > 0 {
			switch v := s.Eval(args[0]).(type) {
			case []any:
				if len(v) > 0 {
					return v[0]
				}
			case map[string]any:
				keys := make([]string, 0, len(v))
				for k := range v {
					keys = append(keys, k)
				}
				if len(keys) > 0 {
					sort.Strings(keys)
					return v[keys[0]]
				}
			}
		}
		return "lorem"
	case "randomelements", "shuffle":
		if s != nil && len(args) > 0 {
			if v, ok := s.Eval(args[0]).([]any); ok {
				return v
			}
		}
		return []any{}
	case "words", "sentences", "paragraphs":
		if s != nil && len(args) > 1 && Truthy(s.Eval(args[1])) {
			return fakerValues["sentence"]
		}
		return []any{"lorem", "ipsum", "dolor"}
	case "randomletter":
		return "a"
	case "randomascii":
		return "x"
	}
	if v, ok := fakerValues[lower]; ok {
		return v
	}
	return "lorem"
}
