// Command libnnas builds the C shared library:
//
//	go build -buildmode=c-shared -o libnnas.so ./cmd/libnnas
//
// Clients are referred to by opaque uint64 handles. Strings returned by the
// library are allocated with malloc and must be released with freeString.
// newClient reports failures through nnas_lastConstructError, a single
// process-wide slot; nnas_newClientErr returns the reason to its caller.
//
// NNAS_CONFIG names an optional YAML file with transport settings (timeouts,
// CA bundle, rules, headers); NNAS_LOG_LEVEL sets the stderr log level.
package main

/*
#include <stdint.h>
#include <stdlib.h>

typedef struct {
	const char *client_id;
	const char *client_secret;
	const char *device_cert;
	const char *environment;
	const char *country;
	const char *region;
	const char *sys_version;
	const char *serial;
	const char *device_id;
	const char *device_type;
	const char *platform_id;
} nnas_DeviceProfile;
*/
import "C"

import (
	"os"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/jmerrifield20/nnas/internal/abi"
	"github.com/jmerrifield20/nnas/internal/config"
	"github.com/jmerrifield20/nnas/pkg/client"
	"github.com/jmerrifield20/nnas/pkg/device"
)

var (
	once    sync.Once
	svc     *abi.Service
	bootErr error
)

// service builds the process-wide Service on first use. A broken config file
// does not crash the host: every newClient call fails with the reason.
func service() *abi.Service {
	once.Do(func() {
		level, err := config.ParseLogLevel(os.Getenv("NNAS_LOG_LEVEL"))
		if err != nil {
			level = zap.NewAtomicLevelAt(zap.WarnLevel)
		}
		zcfg := zap.NewProductionConfig()
		zcfg.Level = level
		logger, err := zcfg.Build()
		if err != nil {
			logger = zap.NewNop()
		}

		var opts []client.Option
		if path := os.Getenv("NNAS_CONFIG"); path != "" {
			opts, bootErr = loadOptions(path, logger)
			if bootErr != nil {
				logger.Error("load config", zap.String("path", path), zap.Error(bootErr))
			}
		}
		svc = abi.NewService(logger, opts...)
	})
	return svc
}

func loadOptions(path string, logger *zap.Logger) ([]client.Option, error) {
	cfg, err := config.Load(path, nil)
	if err != nil {
		return nil, err
	}
	return cfg.ClientOptions(logger, nil)
}

func goProfile(p C.nnas_DeviceProfile) device.Profile {
	return device.Profile{
		ClientID:     C.GoString(p.client_id),
		ClientSecret: C.GoString(p.client_secret),
		DeviceCert:   C.GoString(p.device_cert),
		Environment:  C.GoString(p.environment),
		Country:      C.GoString(p.country),
		Region:       C.GoString(p.region),
		SysVersion:   C.GoString(p.sys_version),
		Serial:       C.GoString(p.serial),
		DeviceID:     C.GoString(p.device_id),
		DeviceType:   C.GoString(p.device_type),
		PlatformID:   C.GoString(p.platform_id),
	}
}

//export newClient
func newClient(endpoint, certPath, keyPath *C.char, profile C.nnas_DeviceProfile) C.uint64_t {
	s := service()
	if bootErr != nil {
		return 0
	}
	h := s.NewClient(C.GoString(endpoint), C.GoString(certPath), C.GoString(keyPath), goProfile(profile))
	return C.uint64_t(h)
}

// nnas_newClientErr is newClient with the failure reason written to
// *errOut (when errOut is not NULL) instead of the shared slot read by
// nnas_lastConstructError. The caller frees *errOut with freeString.
//
//export nnas_newClientErr
func nnas_newClientErr(endpoint, certPath, keyPath *C.char, profile C.nnas_DeviceProfile, errOut **C.char) C.uint64_t {
	if errOut != nil {
		*errOut = nil
	}
	s := service()
	err := bootErr
	var h abi.Handle
	if err == nil {
		h, err = s.Construct(C.GoString(endpoint), C.GoString(certPath), C.GoString(keyPath), goProfile(profile))
	}
	if err != nil && errOut != nil {
		*errOut = C.CString(err.Error())
	}
	return C.uint64_t(h)
}

// nnas_lastConstructError reports the most recent newClient failure in the
// process. Concurrent callers share it; use nnas_newClientErr instead.
//
//export nnas_lastConstructError
func nnas_lastConstructError() *C.char {
	s := service()
	if bootErr != nil {
		return C.CString(bootErr.Error())
	}
	return C.CString(s.LastConstructError())
}

//export doesUserExist
func doesUserExist(handle C.uint64_t, username *C.char) C.int {
	return C.int(service().DoesUserExist(abi.Handle(handle), C.GoString(username)))
}

//export lookupUser
func lookupUser(handle C.uint64_t, username *C.char) C.int {
	return C.int(service().LookupUser(abi.Handle(handle), C.GoString(username)))
}

//export lastError
func lastError(handle C.uint64_t) *C.char {
	return C.CString(service().LastError(abi.Handle(handle)))
}

//export destroyClient
func destroyClient(handle C.uint64_t) {
	service().Destroy(abi.Handle(handle))
}

//export freeString
func freeString(s *C.char) {
	C.free(unsafe.Pointer(s))
}

func main() {}
