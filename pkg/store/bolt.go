package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"fleethq/pkg/types"
)

var (
	bucketWorkers     = []byte("workers")
	bucketDeployments = []byte("deployments")
	bucketReplicas    = []byte("replicas")
	bucketCounters    = []byte("counters")
)

const (
	counterWorker     = "worker"
	counterDeployment = "deployment"
	counterReplica    = "replica"
)

// Bolt is a durable Store backed by go.etcd.io/bbolt, one bucket per
// entity type plus a counters bucket for the C1 monotonic ids.
type Bolt struct {
	db *bolt.DB
}

// NewBolt opens (creating if absent) a bbolt database under dataDir.
func NewBolt(dataDir string) (*Bolt, error) {
	dbPath := filepath.Join(dataDir, "fleethq.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketWorkers, bucketDeployments, bucketReplicas, bucketCounters} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Bolt{db: db}, nil
}

func (s *Bolt) Close() error { return s.db.Close() }

func idKey(id int64) []byte {
	return []byte(fmt.Sprintf("%020d", id))
}

func (s *Bolt) nextID(counter string) (int64, error) {
	var next int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCounters)
		key := []byte(counter)
		cur := b.Get(key)
		var v int64
		if cur != nil {
			v = int64(binary.BigEndian.Uint64(cur))
		}
		v++
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(v))
		if err := b.Put(key, buf); err != nil {
			return err
		}
		next = v
		return nil
	})
	return next, err
}

func (s *Bolt) NextWorkerID() (int64, error)     { return s.nextID(counterWorker) }
func (s *Bolt) NextDeploymentID() (int64, error) { return s.nextID(counterDeployment) }
func (s *Bolt) NextReplicaID() (int64, error)    { return s.nextID(counterReplica) }

func (s *Bolt) CreateWorker(w *types.Worker) error { return s.putWorker(w) }
func (s *Bolt) UpdateWorker(w *types.Worker) error { return s.putWorker(w) }

func (s *Bolt) putWorker(w *types.Worker) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWorkers)
		data, err := json.Marshal(w)
		if err != nil {
			return err
		}
		return b.Put(idKey(w.ID), data)
	})
}

func (s *Bolt) GetWorker(id int64) (*types.Worker, error) {
	var w types.Worker
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketWorkers).Get(idKey(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &w)
	})
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *Bolt) GetWorkerByHostname(hostname string) (*types.Worker, error) {
	var found *types.Worker
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWorkers).ForEach(func(k, v []byte) error {
			var w types.Worker
			if err := json.Unmarshal(v, &w); err != nil {
				return err
			}
			if w.Hostname == hostname {
				found = &w
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (s *Bolt) ListWorkers() ([]*types.Worker, error) {
	var out []*types.Worker
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWorkers).ForEach(func(k, v []byte) error {
			var w types.Worker
			if err := json.Unmarshal(v, &w); err != nil {
				return err
			}
			out = append(out, &w)
			return nil
		})
	})
	return out, err
}

func (s *Bolt) DeleteWorker(id int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWorkers).Delete(idKey(id))
	})
}

func (s *Bolt) CreateDeployment(d *types.Deployment) error { return s.putDeployment(d) }
func (s *Bolt) UpdateDeployment(d *types.Deployment) error { return s.putDeployment(d) }

func (s *Bolt) putDeployment(d *types.Deployment) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(d)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketDeployments).Put(idKey(d.ID), data)
	})
}

func (s *Bolt) GetDeployment(id int64) (*types.Deployment, error) {
	var d types.Deployment
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketDeployments).Get(idKey(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &d)
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Bolt) ListDeployments() ([]*types.Deployment, error) {
	var out []*types.Deployment
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDeployments).ForEach(func(k, v []byte) error {
			var d types.Deployment
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			out = append(out, &d)
			return nil
		})
	})
	return out, err
}

func (s *Bolt) DeleteDeployment(id int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDeployments).Delete(idKey(id))
	})
}

func (s *Bolt) CreateReplica(r *types.Replica) error { return s.putReplica(r) }
func (s *Bolt) UpdateReplica(r *types.Replica) error { return s.putReplica(r) }

func (s *Bolt) putReplica(r *types.Replica) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketReplicas).Put(idKey(r.ID), data)
	})
}

func (s *Bolt) GetReplica(id int64) (*types.Replica, error) {
	var r types.Replica
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketReplicas).Get(idKey(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &r)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Bolt) ListReplicasByDeployment(deploymentID int64) ([]*types.Replica, error) {
	var out []*types.Replica
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReplicas).ForEach(func(k, v []byte) error {
			var r types.Replica
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			if r.DeploymentID == deploymentID {
				out = append(out, &r)
			}
			return nil
		})
	})
	return out, err
}

func (s *Bolt) DeleteReplica(id int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReplicas).Delete(idKey(id))
	})
}
