// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// dirtyFileName is the name of the file marking a database directory as
// being in use. A mark left behind after a process ended indicates that the
// database was not closed properly and that nodes written since the last
// flush may be missing.
const dirtyFileName = "~dirty"

// markOpen creates the given directory if needed and marks it as in use. It
// reports whether the directory was already marked.
func markOpen(directory string) (bool, error) {
	if err := os.MkdirAll(directory, 0700); err != nil {
		return false, err
	}
	dirty, err := isDirty(directory)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(filepath.Join(directory, dirtyFileName), []byte{}, 0600); err != nil {
		return false, fmt.Errorf("failed to mark directory %s: %w", directory, err)
	}
	return dirty, nil
}

// markClosed removes the in-use mark of the given directory.
func markClosed(directory string) error {
	return os.Remove(filepath.Join(directory, dirtyFileName))
}

// isDirty checks for the presence of the in-use mark. Only regular files
// count as marks.
func isDirty(directory string) (bool, error) {
	info, err := os.Stat(directory)
	if err != nil {
		return false, err
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%s is not a directory", directory)
	}
	stat, err := os.Stat(filepath.Join(directory, dirtyFileName))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stat.Mode().IsRegular(), nil
}
