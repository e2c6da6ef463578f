package qc

import (
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/de-bkg/gognss/pkg/rinex"
	"github.com/de-bkg/gognss/pkg/sp3"
)

// fileIndexFromObsHeader extracts the identifiers DeriveIndexKey needs
// from a RINEX observation header.
func fileIndexFromObsHeader(hdr rinex.ObsHeader) FileIndex {
	return FileIndex{
		GeodeticMarker: hdr.MarkerName,
		GnssReceiver:   hdr.ReceiverType,
		Agency:         hdr.Agency,
		Operator:       hdr.Observer,
		RxAntenna:      hdr.AntennaType,
	}
}

// LoadObsFile decodes path as a RINEX observation file and loads it into
// store under the IndexKey mode derives from its header.
func (s *DataStore) LoadObsFile(path string, mode IndexingMode) (SourceDescriptor, error) {
	rec, err := rinex.LoadObsFile(path)
	if err != nil {
		return SourceDescriptor{}, newError(KindInput, "load obs file "+path, err)
	}
	key := DeriveIndexKey(mode, fileIndexFromObsHeader(rec.Header))
	desc := SourceDescriptor{Product: ProductObservation, Index: key, Filename: filepath.Base(path)}
	if err := s.Load(desc, &rinexDataSet{Obs: rec}); err != nil {
		log.WithField("descriptor", desc.String()).WithError(err).Warn("qc: merge conflict loading observation file")
		return desc, err
	}
	return desc, nil
}

// LoadGzipObsFile decompresses and decodes a gzip-compressed RINEX
// observation file.
func (s *DataStore) LoadGzipObsFile(path string, mode IndexingMode) (SourceDescriptor, error) {
	rec, err := rinex.LoadGzipObsFile(path)
	if err != nil {
		return SourceDescriptor{}, newError(KindInput, "load gzip obs file "+path, err)
	}
	key := DeriveIndexKey(mode, fileIndexFromObsHeader(rec.Header))
	desc := SourceDescriptor{Product: ProductObservation, Index: key, Filename: filepath.Base(path)}
	if err := s.Load(desc, &rinexDataSet{Obs: rec}); err != nil {
		return desc, err
	}
	return desc, nil
}

// LoadNavFile decodes path as a RINEX navigation file. Navigation
// datasets always collapse into IndexKey::None.
func (s *DataStore) LoadNavFile(path string) (SourceDescriptor, error) {
	rec, err := rinex.LoadNavFile(path)
	if err != nil {
		return SourceDescriptor{}, newError(KindInput, "load nav file "+path, err)
	}
	desc := SourceDescriptor{Product: ProductBroadcastNavigation, Index: NoneKey, Filename: filepath.Base(path)}
	if err := s.Load(desc, &rinexDataSet{Nav: rec}); err != nil {
		log.WithField("descriptor", desc.String()).WithError(err).Warn("qc: merge conflict loading navigation file")
		return desc, err
	}
	return desc, nil
}

// LoadGzipNavFile decompresses and decodes a gzip-compressed RINEX
// navigation file.
func (s *DataStore) LoadGzipNavFile(path string) (SourceDescriptor, error) {
	rec, err := rinex.LoadGzipNavFile(path)
	if err != nil {
		return SourceDescriptor{}, newError(KindInput, "load gzip nav file "+path, err)
	}
	desc := SourceDescriptor{Product: ProductBroadcastNavigation, Index: NoneKey, Filename: filepath.Base(path)}
	if err := s.Load(desc, &rinexDataSet{Nav: rec}); err != nil {
		return desc, err
	}
	return desc, nil
}

// LoadMeteoFile decodes path as a RINEX meteo file.
func (s *DataStore) LoadMeteoFile(path string) (SourceDescriptor, error) {
	rec, err := rinex.LoadMeteoFile(path)
	if err != nil {
		return SourceDescriptor{}, newError(KindInput, "load meteo file "+path, err)
	}
	key := DeriveIndexKey(IndexingAuto, FileIndex{GeodeticMarker: rec.Header.MarkerName})
	desc := SourceDescriptor{Product: ProductMeteoObservation, Index: key, Filename: filepath.Base(path)}
	if err := s.Load(desc, &rinexDataSet{Meteo: rec}); err != nil {
		return desc, err
	}
	return desc, nil
}

// LoadClockFile decodes path as a RINEX clock file.
func (s *DataStore) LoadClockFile(path string) (SourceDescriptor, error) {
	rec, err := rinex.LoadClockFile(path)
	if err != nil {
		return SourceDescriptor{}, newError(KindInput, "load clock file "+path, err)
	}
	desc := SourceDescriptor{Product: ProductPreciseClock, Index: NoneKey, Filename: filepath.Base(path)}
	if err := s.Load(desc, &rinexDataSet{Clock: rec}); err != nil {
		return desc, err
	}
	return desc, nil
}

// LoadSP3File decodes path as a precise orbit/clock (SP3) file. SP3
// products collapse into IndexKey::None: multi-publisher keying could be
// supported, but this realisation assumes a single publisher per run.
func (s *DataStore) LoadSP3File(path string) (SourceDescriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return SourceDescriptor{}, newError(KindInput, "load sp3 file "+path, err)
	}
	defer f.Close()

	dec, err := sp3.NewDecoder(f)
	if err != nil {
		return SourceDescriptor{}, newError(KindInput, "decode sp3 header "+path, err)
	}
	ds := &sp3DataSet{Header: dec.Header}
	for {
		st, err := dec.NextState()
		if err != nil {
			break
		}
		ds.States = append(ds.States, st)
	}
	desc := SourceDescriptor{Product: ProductPreciseOrbit, Index: NoneKey, Filename: filepath.Base(path)}
	if err := s.Load(desc, ds); err != nil {
		log.WithField("descriptor", desc.String()).WithError(err).Warn("qc: merge conflict loading SP3 file")
		return desc, err
	}
	return desc, nil
}

// LoadGzipSP3File decompresses a gzip-compressed SP3 file to a temp file,
// then decodes it with LoadSP3File.
func (s *DataStore) LoadGzipSP3File(path string) (SourceDescriptor, error) {
	tmp, err := rinex.DecompressToTemp(path)
	if err != nil {
		return SourceDescriptor{}, newError(KindInput, "decompress sp3 file "+path, err)
	}
	defer os.RemoveAll(filepath.Dir(tmp))
	return s.LoadSP3File(tmp)
}
