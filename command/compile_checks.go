package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[RegisterSchemaMessage] = (*RegisterSchemaCommand)(nil)
	_ gocmd.Commander[StoreDataMessage]      = (*StoreDataCommand)(nil)
	_ gocmd.Commander[DeleteDataMessage]     = (*DeleteDataCommand)(nil)
	_ gocmd.Commander[PutGrantMessage]       = (*PutGrantCommand)(nil)
	_ gocmd.Commander[RevokeGrantMessage]    = (*RevokeGrantCommand)(nil)
	_ gocmd.Commander[RunPipelineMessage]    = (*RunPipelineCommand)(nil)
)
