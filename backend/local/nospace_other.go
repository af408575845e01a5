//go:build windows || plan9

package local

func isNoSpace(err error) bool {
	return false
}
