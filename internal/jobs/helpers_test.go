package jobs_test

import "os"

func writeString(path, body string) error {
	return os.WriteFile(path, []byte(body), 0o644)
}
