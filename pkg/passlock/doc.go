/*
Package passlock provides functions for encrypting data using a key derived from a user-provided passphrase.
The result is a base64 text payload that's safe to publish, and can be decrypted by anyone holding the passphrase.

# How it works:

A fresh 16 byte salt and 12 byte nonce are generated from the OS entropy pool for every payload.
A 32 byte key is derived from the passphrase and salt with PBKDF2-HMAC-SHA256 (200,000 iterations by default), scrypt, or Argon2id.
The plaintext is encrypted and authenticated in one pass with AES-256-GCM (or ChaCha20-Poly1305), which appends a 16 byte tag.
The salt, nonce, and ciphertext are concatenated and base64 encoded, so the payload holds everything needed to decrypt it except the passphrase.

Decryption splits the payload, derives the same key from the embedded salt, and verifies the tag before returning anything.
A wrong passphrase, a flipped bit, or mismatched associated data all produce ErrIntegrity, never garbage plaintext.

# Formats:

  - FormatRaw is salt || nonce || ciphertext. It carries no settings, so the reader must use the same KDF and iteration count as the writer. This is the default, and is what a browser client using WebCrypto PBKDF2 + AES-GCM expects.
  - FormatVersioned prepends a 14 byte header with a magic number, version, cipher suite, and KDF settings. The header is authenticated along with the ciphertext, and decryption uses the header's settings, so changing defaults never strands old payloads. A Locker using FormatRaw recognizes these payloads too.

# General guidelines:
  - Reject empty passphrases before calling into this package. Derivation accepts them, but the result is only as strong as the salt.
  - AES-256-GCM supports encrypting about 64GB at a time, and everything here happens in memory, so this is meant for files that comfortably fit in RAM.
  - Associated data (see WithAssociatedData) can bind a payload to the name it's published under, which detects two payloads being swapped. It must be supplied again to decrypt.
  - Don't retry a failed Open with the same inputs, it can't succeed.
*/
package passlock
