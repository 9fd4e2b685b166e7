package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ Registry           = (*ProviderRegistry)(nil)
	_ AuthorizationStore = (*MemoryAuthorizationStore)(nil)
	_ GrantWriter        = (*MemoryAuthorizationStore)(nil)
	_ UserDirectory      = (*MemoryAuthorizationStore)(nil)
	_ DataStore          = (*MemoryDataStore)(nil)
	_ UserDirectory      = (*MemoryDataStore)(nil)
	_ UserDirectory      = UserDirectories(nil)
	_ SchemaRegistry     = (*MemorySchemaRegistry)(nil)
	_ ConfigProvider     = (*CfgxConfigProvider)(nil)
	_ OptionsResolver    = GoOptionsResolver{}
	_ RawConfigLoader    = StaticRawConfigLoader{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
