package driver

import "runtime"

// platformDynlibExt is the dynamic-library extension for the host
// building the description module and, by default, its own targets.
var platformDynlibExt = func() string {
	switch runtime.GOOS {
	case "windows":
		return ".dll"
	case "darwin":
		return ".dylib"
	default:
		return ".so"
	}
}()
