package extract

import (
	"regexp"
	"strings"
)

// NoTextFound is returned by Universal when nothing readable was salvaged.
const NoTextFound = "<i>no text found</i>"

// LineBreak joins the lines salvaged by Universal.
const LineBreak = "<br/>"

var (
	universalSpaces   = regexp.MustCompile(` {2,}`)
	universalScript   = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	universalComment  = regexp.MustCompile(`(?s)<!--.*?-->`)
	universalOpenings = regexp.MustCompile(`(?i)<[biup](?:\s[^>]*)?>`)
	universalSalvage  = regexp.MustCompile(`(?i)(?:^|>)([^<]*)</?[biup]`)
)

// Universal salvages text from a page no descriptor knows about. Text that
// sits right before an inline formatting tag (or a line break) is taken to
// be part of the lyrics body. It never fails; when nothing is salvaged it
// returns NoTextFound.
func Universal(page string) string {
	s := strings.NewReplacer("\r", "", "\t", "", "\n", " ").Replace(page)
	s = universalSpaces.ReplaceAllString(s, " ")
	s = universalScript.ReplaceAllString(s, "")
	s = universalComment.ReplaceAllString(s, "")
	s = universalOpenings.ReplaceAllString(s, "")

	var lines []string
	for _, m := range universalSalvage.FindAllStringSubmatch(s, -1) {
		line := strings.TrimSpace(m[1])
		if strings.TrimSpace(strings.ReplaceAll(line, "&nbsp;", "")) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return NoTextFound
	}
	return strings.Join(lines, LineBreak)
}
