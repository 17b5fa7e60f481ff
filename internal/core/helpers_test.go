package core

import (
	"testing"

	"fortuned/internal/fortune"
	"fortuned/internal/pseudofs"
)

// testNamespace publishes a single-entry catalog under "fortuner" so
// every session yields text.
func testNamespace(t *testing.T, text string, opts ...fortune.Option) (*pseudofs.Namespace, *fortune.Provider) {
	t.Helper()
	cat, err := fortune.NewCatalog([]string{text})
	if err != nil {
		t.Fatal(err)
	}
	p := fortune.NewProvider(cat, opts...)
	ns := pseudofs.New(nil)
	if err := ns.Register("fortuner", p); err != nil {
		t.Fatal(err)
	}
	return ns, p
}
