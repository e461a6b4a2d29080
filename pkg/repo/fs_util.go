package repo

import (
	"os"
)

func statNoFollow(path string) (os.FileInfo, error) {
	return os.Lstat(path)
}

func isNotExist(err error) bool {
	return os.IsNotExist(err)
}
