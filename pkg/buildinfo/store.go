// Package buildinfo implements the Build-Info Store: the persistent
// incremental-build cache described in spec.md §4.3. It is a sequence of
// typed records — newline-terminated strings, raw little-endian binary
// for integers/enums, and "<name>\n <u64 count> (element)*" for arrays —
// deliberately hybrid so the name tags stay greppable while the scalars
// are unambiguous. Grounded on the teacher's pkg/filesystem.FileCache
// round-trip shape (load/save across runs), generalised from YAML to
// this bit-exact custom layout because the wire format is dictated
// exactly by spec.md and cannot be YAML.
package buildinfo

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/containifyci/builder/pkg/config"
	"github.com/containifyci/builder/pkg/errs"
)

// FormatVersion is the embedded layout marker spec.md §6 asks
// implementers to add even though the original format does not carry
// one ("any change to the layout must bump an embedded version marker").
// Bumped to 2 when ConfigRecord.ConfigHash was added to the layout.
const FormatVersion uint32 = 2

// TrackedFile is a source or header file whose timestamp participates in
// the skip-vs-rebuild decision, per spec.md §3.
type TrackedFile struct {
	Path          string
	LastWriteTime int64
}

// ConfigRecord is one persisted config: a copy of the BuildConfig with
// dependencies stored by name, the fast-lookup name hash, and its
// tracked-file set, per spec.md §3.
type ConfigRecord struct {
	Config         *config.BuildConfig
	DependsOnNames []string
	NameHash       uint64
	ConfigHash     uint64
	TrackedFiles   []TrackedFile
}

// BuildInfo is the full persisted cache for one input description, per
// spec.md §3.
type BuildInfo struct {
	BuildSourceFile string
	ModulePath      string
	Configs         []*ConfigRecord
}

// Save serialises info to w in the exact layout of spec.md §4.3.
func Save(w io.Writer, info *BuildInfo) error {
	bw := bufio.NewWriter(w)

	if err := writeU32(bw, FormatVersion); err != nil {
		return errs.Wrap(errs.Io, "write format version", err)
	}
	if err := writeLine(bw, "build_source_file: "+info.BuildSourceFile); err != nil {
		return errs.Wrap(errs.Io, "write build_source_file", err)
	}
	if err := writeLine(bw, "DLL: "+info.ModulePath); err != nil {
		return errs.Wrap(errs.Io, "write DLL", err)
	}
	if err := writeU64(bw, uint64(len(info.Configs))); err != nil {
		return errs.Wrap(errs.Io, "write config_count", err)
	}

	for _, rec := range info.Configs {
		if err := writeConfigRecord(bw, rec); err != nil {
			return err
		}
	}

	if err := bw.Flush(); err != nil {
		return errs.Wrap(errs.Io, "flush build-info", err)
	}
	return nil
}

func writeConfigRecord(bw *bufio.Writer, rec *ConfigRecord) error {
	c := rec.Config
	if err := writeLine(bw, "config: "+c.Name); err != nil {
		return errs.Wrap(errs.Io, "write config name", err)
	}
	if err := writeU64(bw, rec.NameHash); err != nil {
		return errs.Wrap(errs.Io, "write name hash", err)
	}
	if err := writeU64(bw, rec.ConfigHash); err != nil {
		return errs.Wrap(errs.Io, "write config hash", err)
	}
	if err := writeStringArray(bw, "depends_on", rec.DependsOnNames); err != nil {
		return err
	}
	if err := writeStringArray(bw, "sources", c.Sources); err != nil {
		return err
	}
	if err := writeStringArray(bw, "defines", c.Defines); err != nil {
		return err
	}
	if err := writeStringArray(bw, "additional_includes", c.AdditionalIncludes); err != nil {
		return err
	}
	if err := writeStringArray(bw, "additional_lib_paths", c.AdditionalLibPaths); err != nil {
		return err
	}
	if err := writeStringArray(bw, "additional_libs", c.AdditionalLibs); err != nil {
		return err
	}
	if err := writeStringArray(bw, "ignore_warnings", c.IgnoreWarnings); err != nil {
		return err
	}
	if err := writeStringArray(bw, "warning_groups", c.WarningGroups); err != nil {
		return err
	}
	if err := writeStringArray(bw, "extra_args", c.ExtraArgs); err != nil {
		return err
	}
	if err := writeLine(bw, "binary_name: "+c.BinaryName); err != nil {
		return errs.Wrap(errs.Io, "write binary_name", err)
	}
	if err := writeLine(bw, "binary_folder: "+c.BinaryFolder); err != nil {
		return errs.Wrap(errs.Io, "write binary_folder", err)
	}
	if err := writeS32(bw, int32(c.Kind)); err != nil {
		return errs.Wrap(errs.Io, "write binary kind", err)
	}
	if err := writeS32(bw, int32(c.Optimisation)); err != nil {
		return errs.Wrap(errs.Io, "write optimisation", err)
	}
	if err := writeU8(bw, boolToByte(c.StripSymbols)); err != nil {
		return errs.Wrap(errs.Io, "write strip-symbols", err)
	}
	if err := writeU8(bw, boolToByte(c.DropFileExtension)); err != nil {
		return errs.Wrap(errs.Io, "write drop-extension", err)
	}
	// Extension over spec.md's literal byte list (FormatVersion 1):
	// language version and warnings-as-errors, needed to fully rebuild a
	// config from the .build_info-driven path (spec.md §4.6) without
	// recompiling the description.
	if err := writeS32(bw, int32(c.Language)); err != nil {
		return errs.Wrap(errs.Io, "write language version", err)
	}
	if err := writeU8(bw, boolToByte(c.WarningsAsErrors)); err != nil {
		return errs.Wrap(errs.Io, "write warnings-as-errors", err)
	}

	if err := writeLine(bw, "tracked_source_files"); err != nil {
		return errs.Wrap(errs.Io, "write tracked_source_files header", err)
	}
	if err := writeU64(bw, uint64(len(rec.TrackedFiles))); err != nil {
		return errs.Wrap(errs.Io, "write tracked file count", err)
	}
	for _, tf := range rec.TrackedFiles {
		if err := writeLine(bw, tf.Path); err != nil {
			return errs.Wrap(errs.Io, "write tracked file path", err)
		}
		if err := writeU64(bw, uint64(tf.LastWriteTime)); err != nil {
			return errs.Wrap(errs.Io, "write tracked file time", err)
		}
	}
	if err := writeLine(bw, ""); err != nil {
		return errs.Wrap(errs.Io, "write record terminator", err)
	}
	return nil
}

// Load parses a build-info stream and resolves dependency-by-name slots
// back into pointers, per spec.md §3's post-pass. A name that does not
// resolve is fatal and is reported as a ParseError.
func Load(r io.Reader) (*BuildInfo, error) {
	br := bufio.NewReader(r)

	version, err := readU32(br)
	if err != nil {
		return nil, errs.Wrap(errs.Parse, "read format version", err)
	}
	if version != FormatVersion {
		return nil, errs.New(errs.Parse, fmt.Sprintf("unsupported build-info format version %d", version))
	}

	buildSourceFile, err := readPrefixedLine(br, "build_source_file: ")
	if err != nil {
		return nil, errs.Wrap(errs.Parse, "read build_source_file", err)
	}
	modulePath, err := readPrefixedLine(br, "DLL: ")
	if err != nil {
		return nil, errs.Wrap(errs.Parse, "read DLL", err)
	}
	count, err := readU64(br)
	if err != nil {
		return nil, errs.Wrap(errs.Parse, "read config_count", err)
	}

	info := &BuildInfo{BuildSourceFile: buildSourceFile, ModulePath: modulePath}
	byName := make(map[string]*config.BuildConfig, count)

	for i := uint64(0); i < count; i++ {
		rec, err := readConfigRecord(br)
		if err != nil {
			return nil, err
		}
		info.Configs = append(info.Configs, rec)
		byName[rec.Config.Name] = rec.Config
	}

	for _, rec := range info.Configs {
		for _, depName := range rec.DependsOnNames {
			dep, ok := byName[depName]
			if !ok {
				return nil, errs.New(errs.Parse, fmt.Sprintf("unresolved dependency %q for config %q", depName, rec.Config.Name))
			}
			rec.Config.Dependencies = append(rec.Config.Dependencies, dep)
		}
	}

	return info, nil
}

func readConfigRecord(br *bufio.Reader) (*ConfigRecord, error) {
	name, err := readPrefixedLine(br, "config: ")
	if err != nil {
		return nil, errs.Wrap(errs.Parse, "read config name", err)
	}
	nameHash, err := readU64(br)
	if err != nil {
		return nil, errs.Wrap(errs.Parse, "read name hash", err)
	}
	configHash, err := readU64(br)
	if err != nil {
		return nil, errs.Wrap(errs.Parse, "read config hash", err)
	}
	deps, err := readStringArray(br, "depends_on")
	if err != nil {
		return nil, err
	}
	sources, err := readStringArray(br, "sources")
	if err != nil {
		return nil, err
	}
	defines, err := readStringArray(br, "defines")
	if err != nil {
		return nil, err
	}
	includes, err := readStringArray(br, "additional_includes")
	if err != nil {
		return nil, err
	}
	libPaths, err := readStringArray(br, "additional_lib_paths")
	if err != nil {
		return nil, err
	}
	libs, err := readStringArray(br, "additional_libs")
	if err != nil {
		return nil, err
	}
	ignoreWarnings, err := readStringArray(br, "ignore_warnings")
	if err != nil {
		return nil, err
	}
	warningGroups, err := readStringArray(br, "warning_groups")
	if err != nil {
		return nil, err
	}
	extraArgs, err := readStringArray(br, "extra_args")
	if err != nil {
		return nil, err
	}
	binaryName, err := readPrefixedLine(br, "binary_name: ")
	if err != nil {
		return nil, errs.Wrap(errs.Parse, "read binary_name", err)
	}
	binaryFolder, err := readPrefixedLine(br, "binary_folder: ")
	if err != nil {
		return nil, errs.Wrap(errs.Parse, "read binary_folder", err)
	}
	kind, err := readS32(br)
	if err != nil {
		return nil, errs.Wrap(errs.Parse, "read binary kind", err)
	}
	opt, err := readS32(br)
	if err != nil {
		return nil, errs.Wrap(errs.Parse, "read optimisation", err)
	}
	strip, err := readU8(br)
	if err != nil {
		return nil, errs.Wrap(errs.Parse, "read strip-symbols", err)
	}
	dropExt, err := readU8(br)
	if err != nil {
		return nil, errs.Wrap(errs.Parse, "read drop-extension", err)
	}
	lang, err := readS32(br)
	if err != nil {
		return nil, errs.Wrap(errs.Parse, "read language version", err)
	}
	warnErr, err := readU8(br)
	if err != nil {
		return nil, errs.Wrap(errs.Parse, "read warnings-as-errors", err)
	}

	if _, err := readPrefixedLine(br, "tracked_source_files"); err != nil {
		return nil, errs.Wrap(errs.Parse, "read tracked_source_files header", err)
	}
	trackedCount, err := readU64(br)
	if err != nil {
		return nil, errs.Wrap(errs.Parse, "read tracked file count", err)
	}
	tracked := make([]TrackedFile, 0, trackedCount)
	for i := uint64(0); i < trackedCount; i++ {
		path, err := readLine(br)
		if err != nil {
			return nil, errs.Wrap(errs.Parse, "read tracked file path", err)
		}
		t, err := readU64(br)
		if err != nil {
			return nil, errs.Wrap(errs.Parse, "read tracked file time", err)
		}
		tracked = append(tracked, TrackedFile{Path: path, LastWriteTime: int64(t)})
	}
	if _, err := readLine(br); err != nil && err != io.EOF {
		return nil, errs.Wrap(errs.Parse, "read record terminator", err)
	}

	cfg := &config.BuildConfig{
		Name:               name,
		Sources:            sources,
		Defines:            defines,
		AdditionalIncludes: includes,
		AdditionalLibPaths: libPaths,
		AdditionalLibs:     libs,
		IgnoreWarnings:     ignoreWarnings,
		WarningGroups:      warningGroups,
		ExtraArgs:          extraArgs,
		BinaryName:         binaryName,
		BinaryFolder:       binaryFolder,
		Kind:               config.BinaryKind(kind),
		Optimisation:       config.OptimisationLevel(opt),
		Language:           config.LanguageVersion(lang),
		StripSymbols:       strip != 0,
		DropFileExtension:  dropExt != 0,
		WarningsAsErrors:   warnErr != 0,
	}

	return &ConfigRecord{
		Config:         cfg,
		DependsOnNames: deps,
		NameHash:       nameHash,
		ConfigHash:     configHash,
		TrackedFiles:   tracked,
	}, nil
}

// --- primitive read/write helpers ---

func writeLine(w io.Writer, s string) error {
	_, err := io.WriteString(w, s+"\n")
	return err
}

func writeStringArray(w io.Writer, name string, arr []string) error {
	if err := writeLine(w, name); err != nil {
		return errs.Wrap(errs.Io, "write array name "+name, err)
	}
	if err := writeU64(w, uint64(len(arr))); err != nil {
		return errs.Wrap(errs.Io, "write array count "+name, err)
	}
	for _, s := range arr {
		if err := writeLine(w, s); err != nil {
			return errs.Wrap(errs.Io, "write array element "+name, err)
		}
	}
	return nil
}

func readStringArray(br *bufio.Reader, expectedName string) ([]string, error) {
	if _, err := readPrefixedLine(br, expectedName); err != nil {
		return nil, errs.Wrap(errs.Parse, "read array name "+expectedName, err)
	}
	count, err := readU64(br)
	if err != nil {
		return nil, errs.Wrap(errs.Parse, "read array count "+expectedName, err)
	}
	arr := make([]string, 0, count)
	for i := uint64(0); i < count; i++ {
		s, err := readLine(br)
		if err != nil {
			return nil, errs.Wrap(errs.Parse, "read array element "+expectedName, err)
		}
		arr = append(arr, s)
	}
	return arr, nil
}

func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return line, nil
		}
		return "", err
	}
	return line[:len(line)-1], nil
}

func readPrefixedLine(br *bufio.Reader, prefix string) (string, error) {
	line, err := readLine(br)
	if err != nil {
		return "", err
	}
	if !bytes.HasPrefix([]byte(line), []byte(prefix)) {
		return "", fmt.Errorf("expected line with prefix %q, got %q", prefix, line)
	}
	return line[len(prefix):], nil
}

func writeU8(w io.Writer, v byte) error {
	_, err := w.Write([]byte{v})
	return err
}

func readU8(br *bufio.Reader) (byte, error) {
	return br.ReadByte()
}

func writeS32(w io.Writer, v int32) error {
	return writeU32(w, uint32(v))
}

func readS32(br *bufio.Reader) (int32, error) {
	v, err := readU32(br)
	return int32(v), err
}

func writeU32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readU32(br *bufio.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(br, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func writeU64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readU64(br *bufio.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(br, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func boolToByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
