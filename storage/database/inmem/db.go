package inmemdb

import (
	"sync"

	"github.com/trezcool/shule/core/academy"
	"github.com/trezcool/shule/core/approval"
	"github.com/trezcool/shule/storage/database"
)

type (
	DB struct {
		node       *nodeTable
		mark       *markTable
		attendance *attendanceTable
		material   *materialTable
		request    *requestTable
	}

	nodeTable struct {
		sync.RWMutex
		table map[string]*academy.Node
	}

	markTable struct {
		sync.RWMutex
		table map[string]*academy.Mark
	}

	attendanceTable struct {
		sync.RWMutex
		table map[string]*academy.Attendance
	}

	materialTable struct {
		sync.RWMutex
		table map[string]*academy.Material
	}

	requestTable struct {
		sync.RWMutex
		table map[string]*approval.Request
	}
)

func Open() *DB {
	return &DB{
		node:       &nodeTable{table: make(map[string]*academy.Node)},
		mark:       &markTable{table: make(map[string]*academy.Mark)},
		attendance: &attendanceTable{table: make(map[string]*academy.Attendance)},
		material:   &materialTable{table: make(map[string]*academy.Material)},
		request:    &requestTable{table: make(map[string]*approval.Request)},
	}
}

// Load copies the rows of f as they are, ids included.
func (db *DB) Load(f database.Fixture) {
	db.node.Lock()
	for i := range f.Nodes {
		n := f.Nodes[i]
		db.node.table[n.ID] = &n
	}
	db.node.Unlock()

	db.mark.Lock()
	for i := range f.Marks {
		m := f.Marks[i]
		db.mark.table[m.ID] = &m
	}
	db.mark.Unlock()

	db.request.Lock()
	for i := range f.Requests {
		r := f.Requests[i]
		db.request.table[r.ID] = &r
	}
	db.request.Unlock()
}
