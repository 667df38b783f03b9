// Package boltdb stores finished jobs in a bbolt file.
package boltdb

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/alanbriolat/mediagrab/internal/jobs"
)

var Buckets = struct {
	Metadata []byte
	Jobs     []byte
}{
	Metadata: []byte("__metadata__"),
	Jobs:     []byte("jobs"),
}

var MetadataKeys = struct {
	Version []byte
}{
	Version: []byte("version"),
}

const currentVersion = 1

type Database interface {
	Close() error

	jobs.Database
}

type database struct {
	*bbolt.DB
}

func New(path string) (_ Database, err error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			_ = db.Close()
		}
	}()
	err = db.Update(func(tx *bbolt.Tx) (err error) {
		// Ensure buckets exist
		var metadata *bbolt.Bucket
		if metadata, err = tx.CreateBucketIfNotExists(Buckets.Metadata); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(Buckets.Jobs); err != nil {
			return err
		}

		// Get the current version of the database
		var version int
		if versionBytes := metadata.Get(MetadataKeys.Version); versionBytes == nil {
			version = 0
		} else if err = json.Unmarshal(versionBytes, &version); err != nil {
			return err
		}
		if version > currentVersion {
			return fmt.Errorf("database version %d is newer than supported version %d", version, currentVersion)
		}

		// Set the current version of the database
		if versionBytes, err := json.Marshal(currentVersion); err != nil {
			return err
		} else if err = metadata.Put(MetadataKeys.Version, versionBytes); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return &database{db}, nil
}

func (d database) ListJobs() (list []jobs.Job, err error) {
	err = d.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(Buckets.Jobs)
		return bucket.ForEach(func(k, v []byte) error {
			var job jobs.Job
			if err := json.Unmarshal(v, &job); err != nil {
				return fmt.Errorf("invalid job %q: %w", k, err)
			} else {
				list = append(list, job)
				return nil
			}
		})
	})
	if err != nil {
		return nil, err
	} else {
		return list, nil
	}
}

func (d database) WriteJob(job *jobs.Job) error {
	if data, err := json.Marshal(job); err != nil {
		return err
	} else {
		return d.Update(func(tx *bbolt.Tx) error {
			bucket := tx.Bucket(Buckets.Jobs)
			return bucket.Put([]byte(job.ID), data)
		})
	}
}

func (d database) DeleteJob(id jobs.ID) error {
	return d.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(Buckets.Jobs)
		return bucket.Delete([]byte(id))
	})
}
