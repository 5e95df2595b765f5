package sim

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "sim")
