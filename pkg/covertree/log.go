// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package covertree

import (
	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

const logPrefix = "[COVERTREE]> "

func infof(format string, args ...any) {
	cclog.Infof(logPrefix+format, args...)
}

func warnf(format string, args ...any) {
	cclog.Warnf(logPrefix+format, args...)
}

func errorf(format string, args ...any) {
	cclog.Errorf(logPrefix+format, args...)
}

func debugf(format string, args ...any) {
	cclog.Debugf(logPrefix+format, args...)
}

func abortf(format string, args ...any) {
	cclog.Abortf(logPrefix+format, args...)
}
