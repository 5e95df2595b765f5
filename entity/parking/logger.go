package parking

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "parking")
