package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("PELORUS_TEST_MODE") == "" {
			_ = os.Setenv("PELORUS_TEST_MODE", "1")
		}
	})
}
