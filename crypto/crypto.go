// Copyright (C) 2025 Digital Defiance
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later


// Package crypto declares the shared KeyPair contract for participant
// identity keys. The actual implementations live in subpackages:
// - crypto/keys: Ed25519 key pair generation and operations
// - crypto/tkd: temporal (workspace operation) key derivation
// - crypto/ae: authenticated encryption under a temporal key
// - crypto/ledger: append-only commitment log for destroyed temporal keys
// - crypto/keystore: durable persistence trait for temporal and
//   participant keys
package crypto