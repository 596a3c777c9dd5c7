//go:build ruleguard

// Package gorules contains project lint rules for golangci-lint via ruleguard.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// InternalErrors flags standard library error construction in packages that
// should build enhanced errors with a component and category.
//
//	errors.New("queue is full")            // flagged
//	errors.NewStd("queue is full")         // sentinel
//	errors.Newf(...).Component("x").Build() // contextual error
func InternalErrors(m dsl.Matcher) {
	m.Import("errors")

	m.Match(`errors.New($msg)`).
		Where(m.File().Imports("errors") && m.File().PkgPath.Matches(`/internal/`)).
		Report(`use internal/errors: errors.NewStd for sentinels or errors.Newf(...).Component(...).Build()`)
}

// NoPrintInLibraries flags printing from internal packages; commands print
// through cmd.OutOrStdout and everything else goes through the logger.
func NoPrintInLibraries(m dsl.Matcher) {
	m.Match(`fmt.Println($*_)`, `fmt.Printf($*_)`, `fmt.Print($*_)`).
		Where(m.File().PkgPath.Matches(`/internal/`) && !m.File().Name.Matches(`_test\.go$`)).
		Report(`log through the module logger instead of printing`)
}

// RequestWithContext flags outgoing requests that cannot be cancelled. The
// training service client and the notification senders run inside tasks
// that must stop with their context.
func RequestWithContext(m dsl.Matcher) {
	m.Match(`http.NewRequest($method, $url, $body)`).
		Report(`use http.NewRequestWithContext so the request follows the task context`).
		Suggest(`http.NewRequestWithContext(ctx, $method, $url, $body)`)

	m.Match(`http.Get($url)`, `http.Post($*_)`).
		Report(`the default client has no timeout and no context; build a request with NewRequestWithContext`)
}

// DeferredClose flags a deferred Close on a file opened for writing, which
// drops the error that reports a failed flush.
func DeferredClose(m dsl.Matcher) {
	m.Match(`$f, $err := os.Create($*_); $*_; defer $f.Close()`,
		`$f, $err := os.OpenFile($*_); $*_; defer $f.Close()`).
		Report(`check the error of $f.Close() for files opened for writing`)
}

// TimeConstants prefers the named layouts over their literal spelling.
func TimeConstants(m dsl.Matcher) {
	m.Match(`$t.Format("2006-01-02 15:04:05")`).
		Report(`use time.DateTime`).
		Suggest(`$t.Format(time.DateTime)`)

	m.Match(`$t.Format("2006-01-02")`).
		Report(`use time.DateOnly`).
		Suggest(`$t.Format(time.DateOnly)`)
}

// BenchmarkLoop prefers b.Loop over the b.N counter loop.
func BenchmarkLoop(m dsl.Matcher) {
	m.Match(`for $i := 0; $i < $b.N; $i++ { $*body }`).
		Where(m["b"].Type.Is("*testing.B")).
		Report(`use for $b.Loop() { ... }`).
		Suggest(`for $b.Loop() { $body }`)
}
