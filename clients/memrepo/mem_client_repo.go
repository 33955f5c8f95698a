package memrepo

import (
	"sort"
	"sync"

	"github.com/jrsteele09/go-mfa-grant/clients"
	apperrors "github.com/jrsteele09/go-mfa-grant/internal/errors"
)

var _ clients.Repo = (*MemClientRepo)(nil)

type MemClientRepo struct {
	clients map[string]*clients.Client
	lock    sync.RWMutex
}

func NewMemClientRepo() *MemClientRepo {
	return &MemClientRepo{
		clients: make(map[string]*clients.Client),
	}
}

func (r *MemClientRepo) Upsert(clientData *clients.Client) error {
	if clientData == nil || clientData.ID == "" {
		return apperrors.ErrInvalidClient
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	r.clients[clientData.ID] = clientData
	return nil
}

func (r *MemClientRepo) Get(clientID string) (*clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	client, ok := r.clients[clientID]
	if !ok {
		return nil, apperrors.ErrClientNotFound
	}
	return client, nil
}

func (r *MemClientRepo) List() ([]*clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	list := make([]*clients.Client, 0, len(r.clients))
	for _, v := range r.clients {
		list = append(list, v)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return list, nil
}
