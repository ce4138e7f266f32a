package ocr

import (
	"os"
	"sort"
	"strings"
)

const trainedDataExt = ".traineddata"

// InstalledLanguages lists the language codes with a traineddata file in dir.
func InstalledLanguages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var langs []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, trainedDataExt) {
			continue
		}
		langs = append(langs, strings.TrimSuffix(name, trainedDataExt))
	}
	sort.Strings(langs)
	return langs, nil
}
