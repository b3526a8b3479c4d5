package sync

// ---------------------------------------------------------------------------
// EntityType
// ---------------------------------------------------------------------------

// EntityType identifies the kind of upstream entity being synchronized.
type EntityType string

const (
	// EntityTypeOrder represents upstream sales orders
	EntityTypeOrder EntityType = "ORDER"
	// EntityTypeProduct represents upstream products with variants
	EntityTypeProduct EntityType = "PRODUCT"
)

// IsValid returns true if the entity type is valid
func (t EntityType) IsValid() bool {
	switch t {
	case EntityTypeOrder, EntityTypeProduct:
		return true
	default:
		return false
	}
}

// String returns the string representation of EntityType
func (t EntityType) String() string {
	return string(t)
}

// ---------------------------------------------------------------------------
// RunStatus
// ---------------------------------------------------------------------------

// RunStatus represents the state of a pipeline run.
type RunStatus string

const (
	// RunStatusPending indicates the run is scheduled but not started
	RunStatusPending RunStatus = "PENDING"
	// RunStatusRunning indicates the run is executing
	RunStatusRunning RunStatus = "RUNNING"
	// RunStatusSuccess indicates every record in the run succeeded
	RunStatusSuccess RunStatus = "SUCCESS"
	// RunStatusPartial indicates some records succeeded and some failed
	RunStatusPartial RunStatus = "PARTIAL"
	// RunStatusFailed indicates the run failed entirely
	RunStatusFailed RunStatus = "FAILED"
	// RunStatusRetrying indicates a transient failure under the retry budget
	RunStatusRetrying RunStatus = "RETRYING"
	// RunStatusCancelled indicates an explicit external stop signal
	RunStatusCancelled RunStatus = "CANCELLED"
)

// IsValid returns true if the status is valid
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusSuccess, RunStatusPartial,
		RunStatusFailed, RunStatusRetrying, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true once the status can no longer change.
// Retrying is not terminal: the run will be attempted again.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSuccess, RunStatusPartial, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of RunStatus
func (s RunStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// FlowType
// ---------------------------------------------------------------------------

// FlowType identifies which pipeline flow a run executed.
type FlowType string

const (
	FlowTypeFetchOrders       FlowType = "FETCH_ORDERS"
	FlowTypeFetchProducts     FlowType = "FETCH_PRODUCTS"
	FlowTypeTransformOrders   FlowType = "TRANSFORM_ORDERS"
	FlowTypeTransformProducts FlowType = "TRANSFORM_PRODUCTS"
	FlowTypeFullSync          FlowType = "FULL_SYNC"
	FlowTypeIncrementalSync   FlowType = "INCREMENTAL_SYNC"
)

// IsValid returns true if the flow type is valid
func (f FlowType) IsValid() bool {
	switch f {
	case FlowTypeFetchOrders, FlowTypeFetchProducts, FlowTypeTransformOrders,
		FlowTypeTransformProducts, FlowTypeFullSync, FlowTypeIncrementalSync:
		return true
	default:
		return false
	}
}

// String returns the string representation of FlowType
func (f FlowType) String() string {
	return string(f)
}

// ---------------------------------------------------------------------------
// TriggerKind
// ---------------------------------------------------------------------------

// TriggerKind distinguishes scheduled interval triggers from manual ones.
// Manual triggers bypass the business-hours gate; semantics are otherwise
// identical.
type TriggerKind string

const (
	TriggerScheduled TriggerKind = "SCHEDULED"
	TriggerManual    TriggerKind = "MANUAL"
)
