package walking

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "walking")
