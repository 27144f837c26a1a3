package pairing

import (
	"strconv"

	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/util/keys"
)

// snapshotCredentials flattens the linked device's long-lived identity
// material into an opaque mapping. Key material stays as raw bytes; the
// session store's codec takes care of making them storage-safe.
func snapshotCredentials(device *store.Device) map[string]any {
	creds := map[string]any{
		"registrationId": device.RegistrationID,
		"platform":       device.Platform,
		"businessName":   device.BusinessName,
		"pushName":       device.PushName,
	}
	if device.ID != nil {
		creds["jid"] = device.ID.String()
	}
	if len(device.AdvSecretKey) > 0 {
		creds["advSecretKey"] = append([]byte(nil), device.AdvSecretKey...)
	}
	if kp := keyPairMapping(device.NoiseKey); kp != nil {
		creds["noiseKey"] = kp
	}
	if kp := keyPairMapping(device.IdentityKey); kp != nil {
		creds["identityKey"] = kp
	}
	return creds
}

// snapshotKeys collects the device's rotating key material by category
// and key id.
func snapshotKeys(device *store.Device) map[string]map[string]any {
	out := map[string]map[string]any{}
	if spk := device.SignedPreKey; spk != nil {
		entry := map[string]any{}
		if kp := keyPairMapping(&spk.KeyPair); kp != nil {
			entry["keyPair"] = kp
		}
		if spk.Signature != nil {
			entry["signature"] = append([]byte(nil), spk.Signature[:]...)
		}
		out["signed-pre-key"] = map[string]any{
			strconv.FormatUint(uint64(spk.KeyID), 10): entry,
		}
	}
	return out
}

func keyPairMapping(kp *keys.KeyPair) map[string]any {
	if kp == nil || kp.Pub == nil || kp.Priv == nil {
		return nil
	}
	return map[string]any{
		"public":  append([]byte(nil), kp.Pub[:]...),
		"private": append([]byte(nil), kp.Priv[:]...),
	}
}
