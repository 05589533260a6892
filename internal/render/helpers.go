package render

import (
	"math/rand"
	"sync"

	"github.com/aymerick/raymond"
)

var registerValueHelpersOnce sync.Once

// registerValueHelpers installs the ordinary (non-decorator) custom
// helpers once, globally: unlike the decorators, these never touch a
// per-render accumulator, so there is no concurrency hazard in sharing
// one registration across every render.
func registerValueHelpers() {
	registerValueHelpersOnce.Do(func() {
		raymond.RegisterHelper("pick-random", pickRandom)
		raymond.RegisterHelper("partial-for-markup", partialForMarkup)
	})
}

// pickRandom selects a uniformly random element of arr. The source is
// the package-level math/rand generator, left unseeded deliberately
// (spec.md Open Question: reproducibility across runs is unspecified).
func pickRandom(arr []interface{}) interface{} {
	if len(arr) == 0 {
		return nil
	}
	return arr[rand.Intn(len(arr))]
}

// partialForMarkup returns name suffixed for the protocol named by
// protocol ("https" or "gemini"), so a template can say
// `{{partial-for-markup "header" protocol}}` and get "header.html" or
// "header.gmi" without branching in the template itself.
func partialForMarkup(name, protocol string) string {
	if protocol == "gemini" {
		return name + ".gmi"
	}
	return name + ".html"
}
