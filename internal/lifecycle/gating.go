package lifecycle

// whitelist is the set of methods answered even while the machine is
// not yet StageReady. Every other inbound request fails with
// NotReady.
var whitelist = map[string]bool{
	"init":                true,
	"checkModel":          true,
	"diagnostics.getLogs": true,
}

// Allow reports whether method may be answered given the machine's
// current stage.
func (m *Machine) Allow(method string) bool {
	if m.Stage() == StageReady {
		return true
	}
	return whitelist[method]
}
