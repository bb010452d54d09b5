package csvstore

import (
	"bufio"
	"io"
	"strings"
)

// NormalizeID canonicalises a structure identifier for matching: surrounding
// whitespace removed, upper-cased.  Index rows and population lists both go
// through this, so lookups are case-insensitive.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// ReadPopulationIDs reads a population list: one structure per line, the
// identifier being the first whitespace-separated token.  Blank lines are
// skipped.  Identifiers come back in file order, un-normalised.
func ReadPopulationIDs(r io.Reader) ([]string, error) {
	var ids []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		ids = append(ids, fields[0])
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// IDSet builds the normalised membership set of a population list.
func IDSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[NormalizeID(id)] = struct{}{}
	}
	return set
}
