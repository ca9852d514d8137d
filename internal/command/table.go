package command

// buildCommandTable returns the static arity/handler table used by
// every Dispatcher. Arity is in the RESP sense: the argument count
// includes the command name itself.
func buildCommandTable() map[string]*Spec {
	return map[string]*Spec{
		"GET":    {Arity: 2, Handler: handleGet},
		"SET":    {Arity: -3, Handler: handleSet},
		"SETNX":  {Arity: 3, Handler: handleSetNX},
		"SETEX":  {Arity: 4, Handler: handleSetEx},
		"PSETEX": {Arity: 4, Handler: handlePSetEx},
		"GETSET": {Arity: 3, Handler: handleGetSet},
		"GETDEL": {Arity: 2, Handler: handleGetDel},
		"GETEX":  {Arity: -2, Handler: handleGetEx},
		"MSET":   {Arity: -3, Handler: handleMSet},
		"MSETNX": {Arity: -3, Handler: handleMSetNX},

		"DEL":    {Arity: -2, Handler: handleDel},
		"UNLINK": {Arity: -2, Handler: handleDel},
		"EXISTS": {Arity: -2, Handler: handleExists},
		"TYPE":   {Arity: 2, Handler: handleType},

		"INCR":   {Arity: 2, Handler: handleIncr},
		"DECR":   {Arity: 2, Handler: handleDecr},
		"INCRBY": {Arity: 3, Handler: handleIncrBy},
		"DECRBY": {Arity: 3, Handler: handleDecrBy},

		"APPEND":   {Arity: 3, Handler: handleAppend},
		"GETRANGE": {Arity: 4, Handler: handleGetRange},
		"SETRANGE": {Arity: 4, Handler: handleSetRange},
		"STRLEN":   {Arity: 2, Handler: handleStrlen},

		"EXPIRE":    {Arity: 3, Handler: handleExpire},
		"PEXPIRE":   {Arity: 3, Handler: handlePExpire},
		"EXPIREAT":  {Arity: 3, Handler: handleExpireAt},
		"PEXPIREAT": {Arity: 3, Handler: handlePExpireAt},
		"PERSIST":   {Arity: 2, Handler: handlePersist},
		"TTL":       {Arity: 2, Handler: handleTTL},
		"PTTL":      {Arity: 2, Handler: handlePTTL},

		"KEYS":   {Arity: 2, Handler: handleKeys},
		"SCAN":   {Arity: -2, Handler: handleScan},
		"DBSIZE": {Arity: 1, Handler: handleDBSize},
		"MEMORY": {Arity: -2, Handler: handleMemoryUsage},
		"OBJECT": {Arity: -2, Handler: handleObject},

		"AUTH":  {Arity: -2, Handler: handleAuth},
		"HELLO": {Arity: -1, Handler: handleHello},
		"PING":  {Arity: -1, Handler: handlePing},
		"ECHO":  {Arity: 2, Handler: handleEcho},
		"QUIT":  {Arity: 1, Handler: handleQuit},

		"SELECT":  {Arity: 2, Handler: handleSelect},
		"COMMAND": {Arity: -1, Handler: handleCommand},
		"CONFIG":  {Arity: -2, Handler: handleConfig},
		"INFO":    {Arity: -1, Handler: handleInfo},
		"CLIENT":  {Arity: -2, Handler: handleClient},

		"LASTSAVE":     {Arity: 1, Handler: handleLastSave},
		"BGREWRITEAOF": {Arity: 1, Handler: handleBGRewriteAOF},
		"BGSAVE":       {Arity: 1, Handler: handleBGSave},
		"DEBUG":        {Arity: -2, Handler: handleDebug},
	}
}
