package store

import (
	"io/fs"
	"path/filepath"
	"reflect"
	"regexp"
)

// Health is a compact health view of the pebble store for scraping.
type Health struct {
	SizeBytes         uint64
	L0Files           int
	CompactionBacklog uint64
}

// GetHealth returns best-effort store health numbers. On-disk size comes
// from walking the DB directory; the rest is pulled out of pebble's metrics
// struct by field-name match, which survives pebble renaming its nested
// types between releases.
func GetHealth() Health {
	var h Health
	if db == nil || dbPath == "" {
		return h
	}
	_ = filepath.WalkDir(dbPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			h.SizeBytes += uint64(fi.Size())
		}
		return nil
	})
	if metrics := db.Metrics(); metrics != nil {
		flat := make(map[string]float64)
		flattenStruct("", reflect.ValueOf(metrics), flat)
		if v := findMetric(flat, `(?i)l0.*files|(?i)level0.*files`); v > 0 {
			h.L0Files = int(v)
		}
		if v := findMetric(flat, `(?i)compaction.*backlog|(?i)compaction.*pending.*bytes`); v > 0 {
			h.CompactionBacklog = uint64(v)
		}
	}
	return h
}

func findMetric(flat map[string]float64, pattern string) float64 {
	re := regexp.MustCompile(pattern)
	for k, v := range flat {
		if re.MatchString(k) {
			return v
		}
	}
	return 0
}

// flattenStruct fills out with every numeric field reachable from v, keyed
// by dotted path.
func flattenStruct(prefix string, v reflect.Value, out map[string]float64) {
	if !v.IsValid() {
		return
	}
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return
	}
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		key := t.Field(i).Name
		if prefix != "" {
			key = prefix + "." + key
		}
		fv := v.Field(i)
		for fv.Kind() == reflect.Interface {
			if fv.IsNil() {
				fv = reflect.Value{}
				break
			}
			fv = fv.Elem()
		}
		switch fv.Kind() {
		case reflect.Struct:
			flattenStruct(key, fv, out)
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			out[key] = float64(fv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			out[key] = float64(fv.Uint())
		case reflect.Float32, reflect.Float64:
			out[key] = fv.Float()
		}
	}
}
