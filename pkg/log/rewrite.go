// Copyright 2025 Drivepipe Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

// Info logs an info message.
func Info(args ...any) {
	getSugar().Info(args...)
}

// Infow logs a structured info message.
func Infow(msg string, keysAndValues ...any) {
	getSugar().Infow(msg, keysAndValues...)
}

// Debug logs a debug message.
func Debug(args ...any) {
	getSugar().Debug(args...)
}

// Debugw logs a structured debug message.
func Debugw(msg string, keysAndValues ...any) {
	getSugar().Debugw(msg, keysAndValues...)
}

// Warn logs a warn message.
func Warn(args ...any) {
	getSugar().Warn(args...)
}

// Warnw logs a structured warn message.
func Warnw(msg string, keysAndValues ...any) {
	getSugar().Warnw(msg, keysAndValues...)
}

// Error logs an error message.
func Error(args ...any) {
	getSugar().Error(args...)
}

// Errorw logs a structured error message.
func Errorw(msg string, keysAndValues ...any) {
	getSugar().Errorw(msg, keysAndValues...)
}

// Fatalw logs a structured fatal message and exits.
func Fatalw(msg string, keysAndValues ...any) {
	getSugar().Fatalw(msg, keysAndValues...)
}
