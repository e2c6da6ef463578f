package rinex

import (
	"fmt"
	"io"
	"os"

	"github.com/mholt/archiver/v3"
)

// ObsRecord is a fully materialized RINEX observation file: its header and
// every decoded epoch, in file order. It is what pkg/qc's DataStore owns
// for an Observation product.
type ObsRecord struct {
	Header ObsHeader
	Epochs []Epoch
}

// NavRecord is a fully materialized RINEX navigation file: its header and
// every decoded ephemeris, in file order.
type NavRecord struct {
	Header       NavHeader
	Ephemerides  []Eph
}

// MeteoRecord is a fully materialized RINEX meteo file: its header and
// every decoded epoch.
type MeteoRecord struct {
	Header MeteoHeader
	Epochs []MeteoEpoch
}

// ClockRecord is a fully materialized RINEX clock file's header. Data
// records are out of scope for the analyses this realisation implements
// (clock-residuals use SP3's onboard clock offsets instead), so only the
// header is retained.
type ClockRecord struct {
	Header ClockHeader
}

// LoadObsFile reads and fully decodes a RINEX observation file.
func LoadObsFile(path string) (*ObsRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rinex: load obs file: %w", err)
	}
	defer f.Close()

	dec, err := NewObsDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("rinex: decode obs header %s: %w", path, err)
	}

	rec := &ObsRecord{Header: dec.Header}
	for dec.NextEpoch() {
		rec.Epochs = append(rec.Epochs, *dec.Epoch())
	}
	if err := dec.Err(); err != nil {
		return rec, fmt.Errorf("rinex: decode obs body %s: %w", path, err)
	}
	return rec, nil
}

// LoadNavFile reads and fully decodes a RINEX navigation file.
func LoadNavFile(path string) (*NavRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rinex: load nav file: %w", err)
	}
	defer f.Close()

	dec, err := NewNavDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("rinex: decode nav header %s: %w", path, err)
	}

	rec := &NavRecord{Header: *dec.Header}
	for {
		eph, err := dec.NextEphemeris()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed individual ephemeris: skip the record, keep reading
			continue
		}
		rec.Ephemerides = append(rec.Ephemerides, eph)
	}
	return rec, nil
}

// LoadMeteoFile reads and fully decodes a RINEX meteo file.
func LoadMeteoFile(path string) (*MeteoRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rinex: load meteo file: %w", err)
	}
	defer f.Close()

	dec, err := NewMetDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("rinex: decode meteo header %s: %w", path, err)
	}

	rec := &MeteoRecord{Header: dec.Header}
	for dec.NextEpoch() {
		rec.Epochs = append(rec.Epochs, *dec.Epoch())
	}
	if err := dec.Err(); err != nil {
		return rec, fmt.Errorf("rinex: decode meteo body %s: %w", path, err)
	}
	return rec, nil
}

// LoadClockFile reads a RINEX clock file's header.
func LoadClockFile(path string) (*ClockRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rinex: load clock file: %w", err)
	}
	defer f.Close()

	dec, err := NewClockDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("rinex: decode clock header %s: %w", path, err)
	}
	return &ClockRecord{Header: *dec.Header}, nil
}

// DecompressToTemp decompresses a gzip-compressed path to a temporary file
// and returns its path.
func DecompressToTemp(path string) (string, error) {
	dir, err := os.MkdirTemp("", "gognss-gzip-*")
	if err != nil {
		return "", fmt.Errorf("rinex: create temp dir: %w", err)
	}
	if err := archiver.DecompressFile(path, dir+"/decompressed"); err != nil {
		return "", fmt.Errorf("rinex: decompress %s: %w", path, err)
	}
	return dir + "/decompressed", nil
}

// LoadGzipObsFile decompresses a gzip-compressed RINEX observation file to
// a temp file, then decodes it with LoadObsFile.
func LoadGzipObsFile(path string) (*ObsRecord, error) {
	tmp, err := DecompressToTemp(path)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)
	return LoadObsFile(tmp)
}

// LoadGzipNavFile decompresses a gzip-compressed RINEX navigation file to a
// temp file, then decodes it with LoadNavFile.
func LoadGzipNavFile(path string) (*NavRecord, error) {
	tmp, err := DecompressToTemp(path)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)
	return LoadNavFile(tmp)
}

// LoadGzipMeteoFile decompresses a gzip-compressed RINEX meteo file to a
// temp file, then decodes it with LoadMeteoFile.
func LoadGzipMeteoFile(path string) (*MeteoRecord, error) {
	tmp, err := DecompressToTemp(path)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)
	return LoadMeteoFile(tmp)
}
