package namespace

// Namespace is a partition key isolating groups of memories.
// The empty Namespace means "no partitioning, see all".
type Namespace string

// All is the unpartitioned namespace: queries scoped to it see every record.
const All Namespace = ""

// IsAll reports whether this namespace places no partition restriction.
func (n Namespace) IsAll() bool {
	return n == All
}

// Covers reports whether a record stored under recordNS is visible to a
// query scoped to n.
func (n Namespace) Covers(recordNS string) bool {
	return n.IsAll() || string(n) == recordNS
}
