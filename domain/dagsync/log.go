package dagsync

import (
	"github.com/kaspanet/dagsync/logger"
	"github.com/kaspanet/dagsync/util/panics"
)

var log, _ = logger.Get(logger.SubsystemTags.DSYN)
var spawn = panics.GoroutineWrapperFunc(log)
