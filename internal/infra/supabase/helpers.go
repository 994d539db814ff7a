package supabase

import (
	"net/url"
	"strings"
)

// ============================================================
// PostgREST filter helpers
// ============================================================

var (
	quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	likeEscaper  = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
)

// quote wraps a filter value in double quotes so '/', ',' and spaces in
// paths survive PostgREST's filter grammar.
func quote(v string) string {
	return `"` + quoteEscaper.Replace(v) + `"`
}

// subtreeFilter matches the row at path and every row below it.
func subtreeFilter(path string) string {
	return "(path.eq." + quote(path) + ",path.like." + quote(likeEscaper.Replace(path)+"/*") + ")"
}

func subtreeQuery(path string, selectCols bool) string {
	q := url.Values{}
	q.Set("or", subtreeFilter(path))
	if selectCols {
		q.Set("select", "path,value")
	}
	return q.Encode()
}

func inQuery(paths []string) string {
	quoted := make([]string, len(paths))
	for i, p := range paths {
		quoted[i] = quote(p)
	}
	q := url.Values{}
	q.Set("path", "in.("+strings.Join(quoted, ",")+")")
	return q.Encode()
}
