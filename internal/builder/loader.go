package builder

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// LoadRecords loads every record declared in the CUE files of dir.
func LoadRecords(dir string) ([]RecordSpec, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat records dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scan records dir: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("load CUE files: %w", formatCUEError(inst.Err))
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("build CUE value: %w", formatCUEError(err))
	}

	specs, err := CompileRecords(value)
	if err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("no records declared in %s", dir)
	}
	return specs, nil
}

// LoadRecord loads dir and returns the record named id.
func LoadRecord(dir, id string) (RecordSpec, error) {
	specs, err := LoadRecords(dir)
	if err != nil {
		return RecordSpec{}, err
	}
	for _, spec := range specs {
		if spec.ID == id {
			return spec, nil
		}
	}
	return RecordSpec{}, fmt.Errorf("record %s not declared in %s", id, dir)
}

// FindCUEFiles walks dir and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
