package domain

// Key identifica uma partição do bulkhead (um path ou a partição global).
type Key string

// GlobalKey é a partição única usada quando o particionamento por path está desligado.
const GlobalKey Key = "global"

// PartitionSnapshot é a ocupação de uma partição num instante.
type PartitionSnapshot struct {
	Key      Key `json:"key"`
	InUse    int `json:"in_use"`
	Capacity int `json:"capacity"`
}

// Snapshot é a fotografia do gate: fila global + ocupação por partição.
type Snapshot struct {
	Waiting    int64               `json:"waiting"`
	MaxWaiting int                 `json:"max_waiting"`
	Partitions []PartitionSnapshot `json:"partitions"`
}

// SnapshotSource é qualquer coisa capaz de produzir um Snapshot (ex: o Gate).
type SnapshotSource interface {
	Snapshot() Snapshot
}
